package main

import (
	"testing"
)

func TestEvaluateCmd_Exists(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "evaluate" {
			found = true
			break
		}
	}
	if !found {
		t.Error("evaluate command not found in rootCmd")
	}
}

func TestEvaluateCmd_Flags(t *testing.T) {
	for _, name := range []string{"model", "solution", "submissions", "timeout"} {
		if evaluateCmd.Flags().Lookup(name) == nil {
			t.Errorf("evaluate command should have --%s flag", name)
		}
	}
}

func TestSolutionPayload(t *testing.T) {
	tests := []struct {
		name     string
		solution string
		want     string
	}{
		{
			name:     "empty omits the field",
			solution: "",
			want:     "",
		},
		{
			name:     "plain string is JSON-quoted",
			solution: "x = 4",
			want:     `"x = 4"`,
		},
		{
			name:     "JSON object passes through raw",
			solution: `{"answer": "x = 4", "workflow": "retry.json"}`,
			want:     `{"answer": "x = 4", "workflow": "retry.json"}`,
		},
		{
			name:     "malformed object is treated as a string",
			solution: "{not json",
			want:     `"{not json"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(solutionPayload(tt.solution))
			if got != tt.want {
				t.Errorf("solutionPayload(%q) = %s, want %s", tt.solution, got, tt.want)
			}
		})
	}
}
