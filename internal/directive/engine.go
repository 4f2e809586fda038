package directive

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ashgrovelabs/tutord/internal/gateway"
	"github.com/ashgrovelabs/tutord/internal/logging"
)

// Completer issues model calls on behalf of the engine. *gateway.Client
// satisfies it; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, req gateway.Request) (string, error)
}

// RunOptions select the models and sampling for one pipeline run.
type RunOptions struct {
	// Model answers every directive. Falls back to the config's
	// model_name when empty.
	Model string

	// Evaluator, when non-empty, enables the meta-evaluation pass with
	// that model after the last directive.
	Evaluator string

	// Temperature for standard models. The gateway withholds it from
	// reasoning models.
	Temperature float64
}

// Engine executes grading pipelines against a model gateway. An Engine is
// stateless across runs and safe for concurrent use.
type Engine struct {
	gw  Completer
	log *logging.Logger
}

// NewEngine returns an engine calling models through gw.
func NewEngine(gw Completer, log *logging.Logger) (*Engine, error) {
	if gw == nil {
		return nil, errors.New("directive: nil completer")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Engine{gw: gw, log: log.Named("directive")}, nil
}

// Run executes cfg's directives in declared order against a fresh state
// seeded from seed and the config variables, returning the final state.
//
// Per directive:
//   - auto_solution with a real exemplary solution present: the solution
//     is copied under the directive's name, no model call.
//   - non-nil template: rendered against the full state and sent to the
//     model; the reply is stored under the directive's name.
//   - nil template: skipped, key stays unset.
//
// Errors from rendering or the gateway abort the run as-is; no step is
// retried. When opts.Evaluator is set, the meta-evaluation pass runs after
// the last directive and appends its critique to the feedback.
func (e *Engine) Run(ctx context.Context, seed Seed, cfg *Config, opts RunOptions) (*State, error) {
	if cfg == nil {
		return nil, errors.New("directive: nil config")
	}
	model := opts.Model
	if model == "" {
		model = cfg.ModelName
	}
	if model == "" {
		return nil, errors.New("directive: no model selected")
	}

	state := newState(seed, cfg.Variables)

	for _, d := range cfg.Directives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if d.Name == NameAutoSolution && seed.Solution != SolutionSentinel {
			if err := state.Set(d.Name, seed.Solution); err != nil {
				return nil, err
			}
			e.log.Debug(ctx, "directive satisfied by exemplary solution",
				zap.String("directive", d.Name))
			continue
		}

		if d.Template == nil {
			e.log.Debug(ctx, "skipping placeholder directive",
				zap.String("directive", d.Name))
			continue
		}

		tpl, ok := cfg.Template(d.Name)
		if !ok {
			// compile() parses every non-nil template; reaching this
			// means the config bypassed ParseConfig.
			return nil, fmt.Errorf("%w: directive %q has no compiled template", ErrConfigInvalid, d.Name)
		}

		prompt, err := tpl.Render(state.Snapshot())
		if err != nil {
			return nil, err
		}
		e.log.Trace(ctx, "rendered directive prompt",
			zap.String("directive", d.Name),
			zap.String("prompt", prompt))

		reply, err := e.gw.Complete(ctx, gateway.Request{
			Model:       model,
			System:      cfg.ContextInstructions,
			Prompt:      prompt,
			Temperature: opts.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("directive %q: %w", d.Name, err)
		}

		if err := state.Set(d.Name, reply); err != nil {
			return nil, err
		}
		e.log.Debug(ctx, "directive complete",
			zap.String("directive", d.Name),
			zap.Int("reply_len", len(reply)))
	}

	if opts.Evaluator != "" {
		if err := e.metaEvaluate(ctx, seed, state, opts); err != nil {
			return nil, err
		}
	}

	return state, nil
}
