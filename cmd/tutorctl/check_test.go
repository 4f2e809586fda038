package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashgrovelabs/tutord/internal/directive"
)

const validConfigJSON = `{
	"context_instructions": "You are a strict math tutor.",
	"directives": {
		"feedback": "Give feedback on {{.output}}",
		"correctness": "Answer Correct or Incorrect for {{.output}}"
	}
}`

func TestCheckCmd_Exists(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "check" {
			found = true
			break
		}
	}
	if !found {
		t.Error("check command not found in rootCmd")
	}
}

func TestCheckCmd_Flags(t *testing.T) {
	if checkCmd.Flags().Lookup("optional-correctness") == nil {
		t.Error("check command should have --optional-correctness flag")
	}
	if checkCmd.Flags().Lookup("base") == nil {
		t.Error("check command should have --base flag")
	}
}

func TestCheckFile_ValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutor.json")
	if err := os.WriteFile(path, []byte(validConfigJSON), 0644); err != nil {
		t.Fatal(err)
	}

	if err := checkFile(path, nil, directive.DefaultContract()); err != nil {
		t.Errorf("valid config failed validation: %v", err)
	}
}

func TestCheckFile_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	broken := `{
		"context_instructions": "tutor",
		"directives": {"feedback": "uses {{.never_produced}}"}
	}`
	if err := os.WriteFile(path, []byte(broken), 0644); err != nil {
		t.Fatal(err)
	}

	err := checkFile(path, nil, directive.Contract{RequireCorrectness: false})
	if err == nil {
		t.Fatal("expected validation error for unresolvable reference")
	}
	if !strings.Contains(err.Error(), "never_produced") {
		t.Errorf("error should name the bad reference, got: %v", err)
	}
}

func TestCheckFile_MissingCorrectness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "essay.json")
	essay := `{
		"context_instructions": "You grade essays.",
		"directives": {"feedback": "Review {{.output}}"}
	}`
	if err := os.WriteFile(path, []byte(essay), 0644); err != nil {
		t.Fatal(err)
	}

	if err := checkFile(path, nil, directive.DefaultContract()); err == nil {
		t.Error("default contract should require a correctness directive")
	}
	if err := checkFile(path, nil, directive.Contract{RequireCorrectness: false}); err != nil {
		t.Errorf("optional-correctness contract should accept the config: %v", err)
	}
}

func TestCheckFile_WorkflowOverride(t *testing.T) {
	base, err := directive.ParseConfig([]byte(validConfigJSON), directive.DefaultContract())
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()

	good := filepath.Join(dir, "retry.json")
	goodJSON := `{"directives": {
		"hint": "Give a hint for {{.prompt}}",
		"feedback": "Feedback on {{.output}} given {{.hint}}",
		"correctness": "Answer Correct or Incorrect for {{.output}}"
	}}`
	if err := os.WriteFile(good, []byte(goodJSON), 0644); err != nil {
		t.Fatal(err)
	}
	if err := checkFile(good, base, directive.DefaultContract()); err != nil {
		t.Errorf("valid workflow failed validation: %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"directives": {"feedback": "{{.missing}}"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := checkFile(bad, base, directive.DefaultContract()); err == nil {
		t.Error("workflow referencing an unknown key should fail validation")
	}
}
