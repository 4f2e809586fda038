package directive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// Well-known state keys read by callers after a run.
const (
	KeyFeedback    = "feedback"
	KeyCorrectness = "correctness"
)

// NameAutoSolution is the reserved directive name that is satisfied by
// copying the exemplary solution instead of calling a model, whenever a
// real solution is present.
const NameAutoSolution = "auto_solution"

// SolutionSentinel marks the absence of an exemplary solution. The platform
// contract uses this exact string; auto_solution checks against it.
const SolutionSentinel = "No exemplary solution provided"

// Directive is one named step of a grading pipeline. A nil Template marks
// a placeholder: the step is skipped and its key stays unset.
type Directive struct {
	Name     string
	Template *string
}

// Directives is an ordered list of pipeline steps. The order is the
// execution order, preserved exactly as declared in configuration.
type Directives []Directive

// directive and variable names must be referenceable from templates.
var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// UnmarshalJSON decodes a JSON object into an ordered directive list.
// encoding/json maps lose member order, so the object is walked token by
// token instead. Values must be strings or null.
func (ds *Directives) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("directives must be a JSON object, got %v", tok)
	}

	out := make(Directives, 0, 8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("directive name must be a string, got %v", tok)
		}

		var tmpl *string
		if err := dec.Decode(&tmpl); err != nil {
			return fmt.Errorf("directive %q: template must be a string or null: %w", name, err)
		}

		out = append(out, Directive{Name: name, Template: tmpl})
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}

	*ds = out
	return nil
}

// Names returns the directive names in execution order.
func (ds Directives) Names() []string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.Name
	}
	return names
}

// Get returns the directive with the given name.
func (ds Directives) Get(name string) (Directive, bool) {
	for _, d := range ds {
		if d.Name == name {
			return d, true
		}
	}
	return Directive{}, false
}

// Variables are configuration constants merged into every run's state.
// JSON values may be strings, numbers, or booleans; non-string scalars are
// stored as their literal text.
type Variables map[string]string

// UnmarshalJSON accepts scalar values and rejects arrays and objects.
func (v *Variables) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Variables, len(raw))
	for name, val := range raw {
		trimmed := bytes.TrimSpace(val)
		if len(trimmed) == 0 || trimmed[0] == '[' || trimmed[0] == '{' {
			return fmt.Errorf("variable %q must be a scalar", name)
		}
		if trimmed[0] == '"' {
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return fmt.Errorf("variable %q: %w", name, err)
			}
			out[name] = s
			continue
		}
		if string(trimmed) == "null" {
			return fmt.Errorf("variable %q must not be null", name)
		}
		out[name] = string(trimmed)
	}

	*v = out
	return nil
}
