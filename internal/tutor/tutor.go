// Package tutor is the grading façade. It turns raw platform inputs (a
// submission string and an exemplary-solution payload) into a pipeline seed,
// resolves per-call workflow overrides, runs the directive engine, and hands
// back the feedback and correctness texts.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ashgrovelabs/tutord/internal/directive"
	"github.com/ashgrovelabs/tutord/internal/gateway"
	"github.com/ashgrovelabs/tutord/internal/logging"
)

// The gateway client is the production completer.
var _ directive.Completer = (*gateway.Client)(nil)

// defaultBatchLimit bounds concurrent pipeline runs in a batch.
const defaultBatchLimit = 4

// Options tune a Tutor instance.
type Options struct {
	// WorkflowDir holds directive override files loadable by name.
	WorkflowDir string

	// DefaultModel answers directives when neither the caller nor the
	// grading config names one.
	DefaultModel string

	// Temperature for standard model calls.
	Temperature float64

	// BatchLimit caps concurrent runs in ProcessBatch. Zero means
	// defaultBatchLimit.
	BatchLimit int
}

// Result is the externally visible outcome of one grading run.
type Result struct {
	Feedback    string `json:"feedback"`
	Correctness string `json:"correctness,omitempty"`
}

// IsCorrect reports whether the correctness verdict reads "correct",
// ignoring case and surrounding whitespace. Anything else, including an
// absent verdict, is incorrect.
func (r Result) IsCorrect() bool {
	return strings.EqualFold(strings.TrimSpace(r.Correctness), "correct")
}

// Tutor grades submissions against one immutable grading configuration.
// Safe for concurrent use; per-run state never leaves the engine.
type Tutor struct {
	cfg         *directive.Config
	eng         *directive.Engine
	workflowDir string
	model       string
	temperature float64
	batchLimit  int
	log         *logging.Logger
}

// New builds a Tutor around a validated grading config and a completer.
func New(cfg *directive.Config, gw directive.Completer, opts Options, log *logging.Logger) (*Tutor, error) {
	if cfg == nil {
		return nil, errors.New("tutor: nil grading config")
	}
	if log == nil {
		log = logging.NewNop()
	}

	eng, err := directive.NewEngine(gw, log)
	if err != nil {
		return nil, err
	}

	limit := opts.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}

	return &Tutor{
		cfg:         cfg,
		eng:         eng,
		workflowDir: opts.WorkflowDir,
		model:       opts.DefaultModel,
		temperature: opts.Temperature,
		batchLimit:  limit,
		log:         log.Named("tutor"),
	}, nil
}

// Config returns the grading configuration the tutor was built with.
func (t *Tutor) Config() *directive.Config {
	return t.cfg
}

// ProcessInput grades one submission. The payload may be plain exemplary
// solution text, or a JSON object carrying question, answer, and workflow
// fields; a workflow field swaps in an alternate directive list for this
// call only. Model selection order: spec, then the grading config, then the
// tutor default.
func (t *Tutor) ProcessInput(ctx context.Context, submission, payload string, spec ModelSpec) (Result, error) {
	info := parsePayload(payload)
	seed := buildSeed(submission, info)

	cfg := t.cfg
	if info.workflow != "" {
		ds, err := t.loadWorkflow(info.workflow)
		if err != nil {
			return Result{}, err
		}
		cfg, err = t.cfg.WithDirectives(ds)
		if err != nil {
			return Result{}, err
		}
		t.log.Debug(ctx, "workflow override active",
			zap.String("workflow", info.workflow),
			zap.Strings("directives", ds.Names()))
	}

	model := spec.Primary
	if model == "" {
		model = cfg.ModelName
	}
	if model == "" {
		model = t.model
	}

	state, err := t.eng.Run(ctx, seed, cfg, directive.RunOptions{
		Model:       model,
		Evaluator:   spec.Evaluator,
		Temperature: t.temperature,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Feedback:    state.Feedback(),
		Correctness: state.Correctness(),
	}, nil
}

// BatchItem is one submission in a batch request.
type BatchItem struct {
	Submission string `json:"submission"`
	Payload    string `json:"payload,omitempty"`
}

// ProcessBatch grades independent submissions concurrently. Results mirror
// the input order. The first failure cancels the remaining runs.
func (t *Tutor) ProcessBatch(ctx context.Context, items []BatchItem, spec ModelSpec) ([]Result, error) {
	results := make([]Result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.batchLimit)
	for i, item := range items {
		g.Go(func() error {
			res, err := t.ProcessInput(gctx, item.Submission, item.Payload, spec)
			if err != nil {
				return fmt.Errorf("batch item %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
