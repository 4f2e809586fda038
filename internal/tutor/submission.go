package tutor

import (
	"encoding/json"
	"strings"

	"github.com/ashgrovelabs/tutord/internal/directive"
)

// answerSeparator splits a raw submission into its question and answer
// segments. Fixed by the platform's submission format.
const answerSeparator = "#Answer:"

// payloadInfo is what the exemplary-solution payload contributed to one
// invocation. Zero values mean the payload said nothing about that part.
type payloadInfo struct {
	solution string
	question string
	workflow string

	// object is true when the payload was a JSON object, meaning its
	// fields were stated explicitly rather than inferred.
	object bool
}

// payloadObject is the JSON shape of a structured exemplary-solution
// payload. All fields are optional.
type payloadObject struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Workflow string `json:"workflow"`
}

// parsePayload interprets the exemplary-solution payload. A JSON object may
// override the question, supply the solution, and select a workflow; any
// other non-empty text is the solution verbatim.
func parsePayload(payload string) payloadInfo {
	text := strings.TrimSpace(payload)
	if text == "" {
		return payloadInfo{}
	}
	if strings.HasPrefix(text, "{") {
		var obj payloadObject
		if err := json.Unmarshal([]byte(text), &obj); err == nil {
			return payloadInfo{
				solution: obj.Answer,
				question: obj.Question,
				workflow: obj.Workflow,
				object:   true,
			}
		}
		// Not a decodable object: fall through to verbatim.
	}
	return payloadInfo{solution: text}
}

// buildSeed derives the pipeline seed from the raw submission and the parsed
// payload. A submission without the separator is recoverable: the whole text
// stands in for both question and answer, and the solution is dropped to the
// sentinel since nothing ties a free-floating solution to an unparsed
// submission. Explicit payload fields still win.
func buildSeed(submission string, p payloadInfo) directive.Seed {
	question, answer, found := strings.Cut(submission, answerSeparator)

	seed := directive.Seed{Solution: directive.SolutionSentinel}
	if found {
		seed.Question = question
		seed.Submission = answer
		if p.solution != "" {
			seed.Solution = p.solution
		}
	} else {
		seed.Question = submission
		seed.Submission = submission
		if p.object && p.solution != "" {
			seed.Solution = p.solution
		}
	}

	if p.object && p.question != "" {
		seed.Question = p.question
	}
	return seed
}
