package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_SeedAndVariables(t *testing.T) {
	s := newState(Seed{
		Question:   "What is 2+2?",
		Submission: "5",
		Solution:   "4",
	}, Variables{"tone": "kind", "audience": "beginners"})

	v, ok := s.Get(KeyPrompt)
	require.True(t, ok)
	assert.Equal(t, "What is 2+2?", v)

	v, ok = s.Get(KeyOutput)
	require.True(t, ok)
	assert.Equal(t, "5", v)

	v, ok = s.Get(KeySolution)
	require.True(t, ok)
	assert.Equal(t, "4", v)

	// Seeds first, then variables sorted by name.
	assert.Equal(t, []string{"prompt", "output", "solution", "audience", "tone"}, s.Keys())
	assert.Equal(t, 5, s.Len())
}

func TestState_SetRejectsOverwrite(t *testing.T) {
	s := newState(Seed{Solution: SolutionSentinel}, nil)

	require.NoError(t, s.Set("analysis", "first"))
	err := s.Set("analysis", "second")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyExists)

	v, _ := s.Get("analysis")
	assert.Equal(t, "first", v)

	assert.ErrorIs(t, s.Set(KeyOutput, "tampered"), ErrKeyExists)
}

func TestState_FeedbackAndCorrectness(t *testing.T) {
	s := newState(Seed{}, nil)
	assert.Empty(t, s.Feedback())
	assert.Empty(t, s.Correctness())

	require.NoError(t, s.Set(KeyFeedback, "Good work."))
	require.NoError(t, s.Set(KeyCorrectness, "Correct"))
	assert.Equal(t, "Good work.", s.Feedback())
	assert.Equal(t, "Correct", s.Correctness())

	s.appendFeedback("\n\nMore.")
	assert.Equal(t, "Good work.\n\nMore.", s.Feedback())

	// Appending never duplicates the key in insertion order.
	assert.Equal(t, []string{"prompt", "output", "solution", "feedback", "correctness"}, s.Keys())
}

func TestState_SnapshotIsolation(t *testing.T) {
	s := newState(Seed{Question: "q"}, nil)
	require.NoError(t, s.Set("analysis", "a"))

	snap := s.Snapshot()
	snap["analysis"] = "mutated"
	snap["injected"] = "x"

	v, _ := s.Get("analysis")
	assert.Equal(t, "a", v)
	_, ok := s.Get("injected")
	assert.False(t, ok)
}
