package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	evaluateModel       string
	evaluateSolution    string
	evaluateSubmissions int
	evaluateTimeout     time.Duration
)

// evaluateCmd grades a submission from a file or stdin
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [file]",
	Short: "Grade a submission from a file or stdin",
	Long: `Grade a student submission using the tutord server.

The submission may carry a question and answer separated by "#Answer:"; a
submission without the separator is graded as both question and answer.

Examples:
  # Grade a file
  tutorctl evaluate submission.txt

  # Grade from stdin
  echo 'What is 2+2?#Answer: 4' | tutorctl evaluate -

  # Grade with an exemplary solution and a specific model
  tutorctl evaluate --solution 'x = 4' --model o3-mini submission.txt

  # Simulate the third submission of a student
  tutorctl evaluate --submissions 2 submission.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateModel, "model", "", "model name (primary or primary__testmode__evaluator)")
	evaluateCmd.Flags().StringVar(&evaluateSolution, "solution", "", "exemplary solution payload (string or JSON object)")
	evaluateCmd.Flags().IntVar(&evaluateSubmissions, "submissions", -1, "prior submission count for quota accounting (-1 disables)")
	evaluateCmd.Flags().DurationVar(&evaluateTimeout, "timeout", 5*time.Minute, "request timeout")
}

// EvaluationRequest matches internal/evaluation Request
type EvaluationRequest struct {
	Response string           `json:"response"`
	Answer   json.RawMessage  `json:"answer,omitempty"`
	Params   EvaluationParams `json:"params"`
}

// EvaluationParams matches internal/evaluation Params
type EvaluationParams struct {
	ModelName         string             `json:"model_name,omitempty"`
	SubmissionContext *SubmissionContext `json:"submission_context,omitempty"`
}

// SubmissionContext matches internal/evaluation SubmissionContext
type SubmissionContext struct {
	SubmissionsPerStudentPerResponseArea int `json:"submissions_per_student_per_response_area"`
}

// EvaluationResult matches internal/evaluation Result
type EvaluationResult struct {
	Feedback  string `json:"feedback"`
	IsCorrect bool   `json:"is_correct"`
}

// runEvaluate handles the evaluate command
func runEvaluate(cmd *cobra.Command, args []string) error {
	var submission []byte
	var err error

	// Read input from file or stdin
	if len(args) == 0 || args[0] == "-" {
		submission, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		submission, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}

	if len(submission) == 0 {
		return fmt.Errorf("no submission to grade")
	}

	reqBody := EvaluationRequest{
		Response: string(submission),
		Answer:   solutionPayload(evaluateSolution),
		Params: EvaluationParams{
			ModelName: evaluateModel,
		},
	}
	if evaluateSubmissions >= 0 {
		reqBody.Params.SubmissionContext = &SubmissionContext{
			SubmissionsPerStudentPerResponseArea: evaluateSubmissions,
		}
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/evaluation", serverURL)
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: evaluateTimeout,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var result EvaluationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	// Feedback to stdout, verdict to stderr so scripts can capture the
	// feedback text cleanly.
	fmt.Println(result.Feedback)
	if result.IsCorrect {
		fmt.Fprintln(os.Stderr, "[tutorctl] verdict: correct")
	} else {
		fmt.Fprintln(os.Stderr, "[tutorctl] verdict: incorrect")
	}

	return nil
}

// solutionPayload encodes the --solution flag as the answer field. A value
// that already parses as a JSON object passes through raw so question,
// answer, and workflow fields reach the server; anything else is sent as a
// JSON string.
func solutionPayload(solution string) json.RawMessage {
	if solution == "" {
		return nil
	}
	trimmed := bytes.TrimSpace([]byte(solution))
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(solution)
	if err != nil {
		return nil
	}
	return json.RawMessage(quoted)
}
