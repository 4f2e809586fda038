// Package evaluation is the platform-facing entry point. It applies the
// gates that run before any grading (test-mode dispatch, submission quota,
// content moderation), converts the platform's wire shapes into tutor
// inputs, and guarantees the platform a well-formed result: grading
// failures become explanatory feedback, never faults.
package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ashgrovelabs/tutord/internal/gateway"
	"github.com/ashgrovelabs/tutord/internal/logging"
	"github.com/ashgrovelabs/tutord/internal/testmode"
	"github.com/ashgrovelabs/tutord/internal/tutor"
)

// MaxSubmissions is the per-student, per-response-area submission ceiling.
// Reaching it refuses grading outright.
const MaxSubmissions = 6

// defaultBatchLimit bounds concurrent evaluations in EvaluateBatch.
const defaultBatchLimit = 4

const (
	quotaRefusal = "You have reached the maximum number of submissions per student per response area. Please contact the administrator if you believe this is an error."

	moderationRefusal = "Your submission was flagged by content moderation and cannot be graded. Please revise your submission and try again."
)

// quotaNotice tells the student where they stand against the ceiling.
func quotaNotice(submissions, ceiling int) string {
	return fmt.Sprintf("You have submitted %d times. You have %d submissions remaining.\n\n",
		submissions+1, ceiling-submissions-1)
}

// SubmissionContext carries platform-side usage counters.
type SubmissionContext struct {
	SubmissionsPerStudentPerResponseArea int `json:"submissions_per_student_per_response_area"`
}

// Params are the extra parameters the platform sends with a request.
type Params struct {
	ModelName         string             `json:"model_name,omitempty"`
	SubmissionContext *SubmissionContext `json:"submission_context,omitempty"`
}

// Request is one evaluation call from the platform. Answer is the
// exemplary-solution payload: a JSON string, a JSON object with question,
// answer, and workflow fields, or anything else (treated as absent).
type Request struct {
	Response string          `json:"response"`
	Answer   json.RawMessage `json:"answer,omitempty"`
	Params   Params          `json:"params"`
}

// Result is the platform response schema.
type Result struct {
	Feedback  string `json:"feedback"`
	IsCorrect bool   `json:"is_correct"`
}

// Moderator screens submissions before grading. *gateway.Client implements
// it; nil disables screening.
type Moderator interface {
	Moderate(ctx context.Context, input string) (gateway.ModerationResult, error)
}

var _ Moderator = (*gateway.Client)(nil)

// Options tune a Service.
type Options struct {
	// DefaultModel answers directives when the request names none.
	DefaultModel string

	// Moderator, when non-nil, screens submissions before grading.
	Moderator Moderator

	// Usage exposes the gateway's token counters to the trace dump.
	Usage *gateway.Usage

	// MaxSubmissions overrides the submission ceiling. Zero means
	// MaxSubmissions.
	MaxSubmissions int

	// BatchLimit caps concurrent evaluations in EvaluateBatch. Zero means
	// defaultBatchLimit.
	BatchLimit int
}

// Service evaluates platform requests against one tutor instance. Safe for
// concurrent use.
type Service struct {
	tut            *tutor.Tutor
	dispatch       *testmode.Dispatcher
	moderator      Moderator
	usage          *gateway.Usage
	defaultModel   string
	maxSubmissions int
	batchLimit     int
	started        time.Time
	evaluations    atomic.Uint64
	log            *logging.Logger
}

// NewService wires the evaluation entry point around a ready tutor.
func NewService(tut *tutor.Tutor, opts Options, log *logging.Logger) (*Service, error) {
	if tut == nil {
		return nil, fmt.Errorf("evaluation: nil tutor")
	}
	if log == nil {
		log = logging.NewNop()
	}
	limit := opts.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	ceiling := opts.MaxSubmissions
	if ceiling <= 0 {
		ceiling = MaxSubmissions
	}

	s := &Service{
		tut:            tut,
		moderator:      opts.Moderator,
		usage:          opts.Usage,
		defaultModel:   opts.DefaultModel,
		maxSubmissions: ceiling,
		batchLimit:     limit,
		started:        time.Now(),
		log:            log.Named("evaluation"),
	}
	s.dispatch = testmode.New(s, log)
	return s, nil
}

// Evaluate grades one submission. The returned error is reserved for
// cancellation; every grading failure is reported inside the Result so the
// platform always receives a well-formed response.
//
// Gate order: test-mode dispatch, submission quota, moderation, then the
// pipeline.
func (s *Service) Evaluate(ctx context.Context, req Request) (Result, error) {
	if testmode.IsCommand(req.Response) {
		out, err := s.dispatch.Execute(ctx, req.Response)
		if err != nil {
			return Result{}, err
		}
		return Result{Feedback: out, IsCorrect: false}, nil
	}

	var prefix string
	if sc := req.Params.SubmissionContext; sc != nil {
		n := sc.SubmissionsPerStudentPerResponseArea
		if n >= s.maxSubmissions {
			s.log.Info(ctx, "submission quota reached", zap.Int("submissions", n))
			return Result{Feedback: quotaRefusal, IsCorrect: false}, nil
		}
		prefix = quotaNotice(n, s.maxSubmissions)
	}

	if s.moderator != nil {
		mod, err := s.moderator.Moderate(ctx, req.Response)
		switch {
		case err != nil:
			// Screening is advisory; grading proceeds when it is down.
			s.log.Warn(ctx, "moderation unavailable", zap.Error(err))
		case mod.Flagged:
			s.log.Info(ctx, "submission flagged",
				zap.Strings("categories", mod.Categories))
			return Result{Feedback: prefix + moderationRefusal, IsCorrect: false}, nil
		}
	}

	spec := tutor.ParseModelSpec(req.Params.ModelName)
	if spec.Primary == "" {
		spec.Primary = s.defaultModel
	}

	s.evaluations.Add(1)
	res, err := s.tut.ProcessInput(ctx, req.Response, answerPayload(req.Answer), spec)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		s.log.Error(ctx, "evaluation failed", zap.Error(err))
		return Result{
			Feedback:  prefix + "An error occurred during the evaluation: " + err.Error(),
			IsCorrect: false,
		}, nil
	}

	return Result{Feedback: prefix + res.Feedback, IsCorrect: res.IsCorrect()}, nil
}

// EvaluateBatch evaluates independent requests concurrently. Results mirror
// the input order. Individual grading failures are already folded into
// their Result; only cancellation fails the batch.
func (s *Service) EvaluateBatch(ctx context.Context, reqs []Request) ([]Result, error) {
	results := make([]Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := s.Evaluate(gctx, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
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

// Report implements testmode.Reporter.
func (s *Service) Report() testmode.Report {
	report := testmode.Report{
		Directives:    s.tut.Config().Directives.Names(),
		DefaultModel:  s.defaultModel,
		UptimeSeconds: time.Since(s.started).Seconds(),
		Evaluations:   s.evaluations.Load(),
	}
	if s.usage != nil {
		report.TokenUsage = s.usage.Snapshot()
	}
	return report
}

// answerPayload extracts the exemplary-solution payload text from the
// platform's answer value. JSON strings are unquoted, objects pass through
// for the tutor to interpret, and everything else counts as absent.
func answerPayload(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return s
	case '{':
		return string(trimmed)
	default:
		return ""
	}
}
