package directive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ashgrovelabs/tutord/internal/gateway"
)

// metaEvalHeading separates the critique from the feedback it reviews.
const metaEvalHeading = "### Feedback critique"

// metaEvaluate sends the produced feedback to the evaluator model for
// critique and appends the critique to the feedback. Runs at most once per
// pipeline run. A run that produced no feedback has nothing to critique.
func (e *Engine) metaEvaluate(ctx context.Context, seed Seed, state *State, opts RunOptions) error {
	feedback := state.Feedback()
	if feedback == "" {
		e.log.Debug(ctx, "skipping meta-evaluation, no feedback produced")
		return nil
	}

	reply, err := e.gw.Complete(ctx, gateway.Request{
		Model:       opts.Evaluator,
		Prompt:      critiquePrompt(seed.Question, seed.Submission, feedback),
		Temperature: opts.Temperature,
	})
	if err != nil {
		return fmt.Errorf("meta-evaluation: %w", err)
	}

	state.appendFeedback("\n\n" + metaEvalHeading + "\n\n" + reply)
	e.log.Debug(ctx, "meta-evaluation complete",
		zap.String("evaluator", opts.Evaluator),
		zap.Int("critique_len", len(reply)))
	return nil
}

// critiquePrompt embeds the question, the student's work, and the feedback
// under review into a fixed instruction.
func critiquePrompt(question, submission, feedback string) string {
	return fmt.Sprintf(`You are reviewing feedback that a tutor gave a student.

The question was:
%s

The student submitted:
%s

The tutor's feedback was:
%s

Evaluate the feedback. Identify any errors it contains, its weaknesses, and its strengths, in that order. Be specific and brief.`,
		question, submission, feedback)
}
