package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("2m30s")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.Duration() != 2*time.Minute+30*time.Second {
		t.Errorf("Duration() = %v, want 2m30s", d.Duration())
	}

	if err := d.UnmarshalText([]byte("-5s")); err == nil {
		t.Error("UnmarshalText(-5s) error = nil, want negative duration error")
	}

	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("UnmarshalText(garbage) error = nil, want parse error")
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"1m30s"` {
		t.Errorf("Marshal() = %s, want \"1m30s\"", data)
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-super-secret")

	if s.String() != "[REDACTED]" {
		t.Errorf("String() = %q, want [REDACTED]", s.String())
	}
	if got := fmt.Sprintf("%v", s); got != "[REDACTED]" {
		t.Errorf("Sprintf(%%v) = %q, want [REDACTED]", got)
	}
	if got := fmt.Sprintf("%#v", s); got != "Secret([REDACTED])" {
		t.Errorf("Sprintf(%%#v) = %q, want Secret([REDACTED])", got)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "super-secret") {
		t.Errorf("Marshal() leaked secret: %s", data)
	}

	if s.Value() != "sk-super-secret" {
		t.Errorf("Value() = %q, want raw secret", s.Value())
	}
}

func TestSecret_EmptyValue(t *testing.T) {
	var s Secret

	if s.String() != "" {
		t.Errorf("String() = %q, want empty", s.String())
	}
	if s.IsSet() {
		t.Error("IsSet() = true for empty secret")
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `""` {
		t.Errorf("Marshal() = %s, want \"\"", data)
	}
}

func TestSecret_Unmarshal(t *testing.T) {
	var s Secret
	if err := json.Unmarshal([]byte(`"sk-from-json"`), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if s.Value() != "sk-from-json" {
		t.Errorf("Value() = %q, want sk-from-json", s.Value())
	}

	var s2 Secret
	if err := s2.UnmarshalText([]byte("sk-from-text")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if s2.Value() != "sk-from-text" {
		t.Errorf("Value() = %q, want sk-from-text", s2.Value())
	}
}
