package directive

import (
	"fmt"
	"sort"
)

// Seed keys present in every run's state before the first directive.
const (
	KeyPrompt   = "prompt"
	KeyOutput   = "output"
	KeySolution = "solution"
)

// seedKeys is the set of keys reserved for the seed.
var seedKeys = map[string]bool{
	KeyPrompt:   true,
	KeyOutput:   true,
	KeySolution: true,
}

// Seed is the initial state for one submission.
type Seed struct {
	Question   string // stored under "prompt"
	Submission string // stored under "output"
	Solution   string // stored under "solution"; SolutionSentinel when absent
}

// State accumulates directive results over one pipeline run. Keys are
// append-only: once set, a key cannot change, except feedback growing by
// the meta-evaluation critique. A State belongs to a single run and is not
// safe for concurrent use.
type State struct {
	values map[string]string
	order  []string
}

// newState seeds a fresh state from the submission and config variables.
func newState(seed Seed, vars Variables) *State {
	s := &State{
		values: make(map[string]string, len(vars)+8),
		order:  make([]string, 0, len(vars)+8),
	}
	s.put(KeyPrompt, seed.Question)
	s.put(KeyOutput, seed.Submission)
	s.put(KeySolution, seed.Solution)

	// Deterministic insertion order for variables.
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.put(name, vars[name])
	}
	return s
}

func (s *State) put(key, value string) {
	if _, exists := s.values[key]; !exists {
		s.order = append(s.order, key)
	}
	s.values[key] = value
}

// Set records a directive result. Overwrites are rejected.
func (s *State) Set(key, value string) error {
	if _, exists := s.values[key]; exists {
		return fmt.Errorf("%w: %q", ErrKeyExists, key)
	}
	s.put(key, value)
	return nil
}

// Get returns the value for key.
func (s *State) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Feedback returns the feedback produced so far, or "".
func (s *State) Feedback() string {
	return s.values[KeyFeedback]
}

// Correctness returns the correctness verdict text, or "".
func (s *State) Correctness() string {
	return s.values[KeyCorrectness]
}

// appendFeedback grows the feedback value in place. Used by the
// meta-evaluation pass; the critique never replaces existing feedback.
func (s *State) appendFeedback(text string) {
	s.put(KeyFeedback, s.values[KeyFeedback]+text)
}

// Snapshot returns a copy of the state for template rendering.
func (s *State) Snapshot() map[string]string {
	snap := make(map[string]string, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	return snap
}

// Keys returns state keys in insertion order.
func (s *State) Keys() []string {
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Len returns the number of keys set.
func (s *State) Len() int {
	return len(s.values)
}
