package directive

import (
	"encoding/json"
	"fmt"
	"os"
)

// Contract captures what a deployment requires of every grading
// configuration it loads. Feedback is always required; some deployments
// grade free-form work where no correctness verdict makes sense.
type Contract struct {
	RequireCorrectness bool
}

// DefaultContract requires both feedback and correctness directives.
func DefaultContract() Contract {
	return Contract{RequireCorrectness: true}
}

// Config is one grading configuration: the system instruction sent with
// standard model calls, the ordered directive pipeline, constants available
// to every template, and the model the pipeline prefers.
//
// A Config is validated and compiled eagerly by ParseConfig; instances are
// read-only afterwards and safe to share across runs.
type Config struct {
	ContextInstructions string     `json:"context_instructions"`
	Directives          Directives `json:"directives"`
	Variables           Variables  `json:"variables,omitempty"`
	ModelName           string     `json:"model_name,omitempty"`

	contract  Contract
	templates map[string]*Template
}

// workflowFile is the on-disk shape of a per-call directive override.
type workflowFile struct {
	Directives Directives `json:"directives"`
}

// ParseConfig decodes and validates a grading configuration. All template
// syntax and reference errors surface here, before any submission runs.
func ParseConfig(data []byte, contract Contract) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	cfg.contract = contract

	if err := cfg.compile(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and parses a grading configuration file.
func LoadConfig(path string, contract Contract) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grading config: %w", err)
	}
	cfg, err := ParseConfig(data, contract)
	if err != nil {
		return nil, fmt.Errorf("grading config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseWorkflow decodes the directive list of a workflow override file.
// The directives are validated against a base config by WithDirectives.
func ParseWorkflow(data []byte) (Directives, error) {
	var wf workflowFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if len(wf.Directives) == 0 {
		return nil, fmt.Errorf("%w: workflow declares no directives", ErrConfigInvalid)
	}
	return wf.Directives, nil
}

// WithDirectives returns a copy of the config running the given directives
// instead of the configured ones. Instructions, variables, and contract are
// retained; the replacement pipeline is validated like any other.
func (c *Config) WithDirectives(ds Directives) (*Config, error) {
	clone := &Config{
		ContextInstructions: c.ContextInstructions,
		Directives:          ds,
		Variables:           c.Variables,
		ModelName:           c.ModelName,
		contract:            c.contract,
	}
	if err := clone.compile(); err != nil {
		return nil, err
	}
	return clone, nil
}

// Template returns the parsed template for a directive name.
func (c *Config) Template(name string) (*Template, bool) {
	t, ok := c.templates[name]
	return t, ok
}

// compile validates the configuration and parses every template.
//
// Checks, in order:
//   - context_instructions present
//   - at least one directive; names valid, unique, and not reserved
//   - variables named validly and not shadowing seed keys
//   - a feedback directive exists (and correctness, per contract)
//   - every template parses and references only producible keys: seed
//     keys, variables, or earlier directive names
func (c *Config) compile() error {
	if c.ContextInstructions == "" {
		return fmt.Errorf("%w: context_instructions is required", ErrConfigInvalid)
	}
	if len(c.Directives) == 0 {
		return fmt.Errorf("%w: at least one directive is required", ErrConfigInvalid)
	}

	for name := range c.Variables {
		if !nameRe.MatchString(name) {
			return fmt.Errorf("%w: variable name %q is not a valid identifier", ErrConfigInvalid, name)
		}
		if seedKeys[name] {
			return fmt.Errorf("%w: variable %q shadows a seed key", ErrConfigInvalid, name)
		}
	}

	// producible tracks keys available to the template being compiled.
	producible := make(map[string]bool, len(c.Variables)+len(c.Directives)+3)
	for key := range seedKeys {
		producible[key] = true
	}
	for name := range c.Variables {
		producible[name] = true
	}

	seenNames := make(map[string]bool, len(c.Directives))
	c.templates = make(map[string]*Template, len(c.Directives))

	for _, d := range c.Directives {
		if !nameRe.MatchString(d.Name) {
			return fmt.Errorf("%w: directive name %q is not a valid identifier", ErrConfigInvalid, d.Name)
		}
		if seedKeys[d.Name] {
			return fmt.Errorf("%w: directive %q shadows a seed key", ErrConfigInvalid, d.Name)
		}
		if _, isVar := c.Variables[d.Name]; isVar {
			return fmt.Errorf("%w: directive %q shadows a variable", ErrConfigInvalid, d.Name)
		}
		if seenNames[d.Name] {
			return fmt.Errorf("%w: duplicate directive %q", ErrConfigInvalid, d.Name)
		}
		seenNames[d.Name] = true

		if d.Template != nil {
			tpl, err := ParseTemplate(d.Name, *d.Template)
			if err != nil {
				return err
			}
			for _, ref := range tpl.Refs() {
				if !producible[ref] {
					return fmt.Errorf("%w: directive %q references %q, which no earlier step produces",
						ErrConfigInvalid, d.Name, ref)
				}
			}
			c.templates[d.Name] = tpl
		}

		// Placeholders still claim their name: a workflow override or the
		// auto_solution rule may fill them, so later templates may refer
		// to them. Unfilled references fail at render time.
		producible[d.Name] = true
	}

	if !seenNames[KeyFeedback] {
		return fmt.Errorf("%w: directives must include %q", ErrConfigInvalid, KeyFeedback)
	}
	if c.contract.RequireCorrectness && !seenNames[KeyCorrectness] {
		return fmt.Errorf("%w: directives must include %q", ErrConfigInvalid, KeyCorrectness)
	}

	return nil
}
