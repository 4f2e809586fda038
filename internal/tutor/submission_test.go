package tutor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashgrovelabs/tutord/internal/directive"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    payloadInfo
	}{
		{
			name:    "empty",
			payload: "",
			want:    payloadInfo{},
		},
		{
			name:    "whitespace only",
			payload: "  \n\t",
			want:    payloadInfo{},
		},
		{
			name:    "plain solution text",
			payload: "The answer is 4.",
			want:    payloadInfo{solution: "The answer is 4."},
		},
		{
			name:    "sentinel text stays verbatim",
			payload: "No exemplary solution provided",
			want:    payloadInfo{solution: "No exemplary solution provided"},
		},
		{
			name:    "full object",
			payload: `{"question": "What is 2+2?", "answer": "4", "workflow": "alt.json"}`,
			want: payloadInfo{
				solution: "4",
				question: "What is 2+2?",
				workflow: "alt.json",
				object:   true,
			},
		},
		{
			name:    "object with answer only",
			payload: `{"answer": "x = 4"}`,
			want:    payloadInfo{solution: "x = 4", object: true},
		},
		{
			name:    "object with no known fields",
			payload: `{"hint": "unused"}`,
			want:    payloadInfo{object: true},
		},
		{
			name:    "malformed object treated verbatim",
			payload: `{"answer": broken`,
			want:    payloadInfo{solution: `{"answer": broken`},
		},
		{
			name:    "object with non-string answer treated verbatim",
			payload: `{"answer": 4}`,
			want:    payloadInfo{solution: `{"answer": 4}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePayload(tt.payload))
		})
	}
}

func TestBuildSeed(t *testing.T) {
	tests := []struct {
		name       string
		submission string
		payload    string
		want       directive.Seed
	}{
		{
			name:       "separator with plain solution",
			submission: "What is 2+2?#Answer: The answer is 4.",
			payload:    "The answer is 4.",
			want: directive.Seed{
				Question:   "What is 2+2?",
				Submission: " The answer is 4.",
				Solution:   "The answer is 4.",
			},
		},
		{
			name:       "separator without payload",
			submission: "What is 2+2?#Answer: 4",
			payload:    "",
			want: directive.Seed{
				Question:   "What is 2+2?",
				Submission: " 4",
				Solution:   directive.SolutionSentinel,
			},
		},
		{
			name:       "missing separator falls back to whole submission",
			submission: "This is not a valid submission format",
			payload:    "Some solution",
			want: directive.Seed{
				Question:   "This is not a valid submission format",
				Submission: "This is not a valid submission format",
				Solution:   directive.SolutionSentinel,
			},
		},
		{
			name:       "missing separator with explicit object solution",
			submission: "free-form work",
			payload:    `{"answer": "x = 4"}`,
			want: directive.Seed{
				Question:   "free-form work",
				Submission: "free-form work",
				Solution:   "x = 4",
			},
		},
		{
			name:       "object question overrides split question",
			submission: "garbled?#Answer: 4",
			payload:    `{"question": "What is 2+2?", "answer": "4"}`,
			want: directive.Seed{
				Question:   "What is 2+2?",
				Submission: " 4",
				Solution:   "4",
			},
		},
		{
			name:       "only the first separator splits",
			submission: "q#Answer: a#Answer: b",
			payload:    "",
			want: directive.Seed{
				Question:   "q",
				Submission: " a#Answer: b",
				Solution:   directive.SolutionSentinel,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildSeed(tt.submission, parsePayload(tt.payload)))
		})
	}
}

func TestResult_IsCorrect(t *testing.T) {
	tests := []struct {
		verdict string
		want    bool
	}{
		{"correct", true},
		{"Correct", true},
		{" CORRECT \n", true},
		{"incorrect", false},
		{"Incorrect", false},
		{"", false},
		{"The answer is correct", false},
	}

	for _, tt := range tests {
		t.Run(tt.verdict, func(t *testing.T) {
			assert.Equal(t, tt.want, Result{Correctness: tt.verdict}.IsCorrect())
		})
	}
}
