package tutor

import "strings"

// evaluatorSeparator joins a primary model and an evaluator model inside a
// single platform model identifier. The platform contract predates this
// service and cannot carry a second field.
const evaluatorSeparator = "__testmode__"

// ModelSpec is the structured form of a platform model identifier: the model
// that answers directives, and an optional evaluator model that critiques
// the produced feedback afterwards.
type ModelSpec struct {
	Primary   string
	Evaluator string
}

// ParseModelSpec splits a platform model identifier. "gpt-4o" selects a
// single model; "gpt-4o__testmode__o3-mini" additionally enables the
// meta-evaluation pass with o3-mini. Empty segments are left empty; callers
// apply their own defaults.
func ParseModelSpec(s string) ModelSpec {
	primary, evaluator, found := strings.Cut(s, evaluatorSeparator)
	spec := ModelSpec{Primary: strings.TrimSpace(primary)}
	if found {
		spec.Evaluator = strings.TrimSpace(evaluator)
	}
	return spec
}

// String reassembles the platform identifier form.
func (s ModelSpec) String() string {
	if s.Evaluator == "" {
		return s.Primary
	}
	return s.Primary + evaluatorSeparator + s.Evaluator
}
