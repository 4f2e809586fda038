package gateway

import "sync/atomic"

// Usage tracks prompt and completion tokens across every call made through
// a client. Counters are shared by concurrent submissions, only ever grow,
// and are never reset for the life of the process.
type Usage struct {
	prompt     atomic.Int64
	completion atomic.Int64
}

// Add records the token usage of one successful call.
func (u *Usage) Add(prompt, completion int64) {
	u.prompt.Add(prompt)
	u.completion.Add(completion)
}

// Prompt returns total prompt tokens consumed.
func (u *Usage) Prompt() int64 {
	return u.prompt.Load()
}

// Completion returns total completion tokens produced.
func (u *Usage) Completion() int64 {
	return u.completion.Load()
}

// Total returns the combined token count.
func (u *Usage) Total() int64 {
	return u.prompt.Load() + u.completion.Load()
}

// Snapshot is a point-in-time copy of the counters, shaped for JSON
// diagnostics output.
type Snapshot struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Snapshot returns the current counter values.
func (u *Usage) Snapshot() Snapshot {
	p := u.prompt.Load()
	c := u.completion.Load()
	return Snapshot{
		PromptTokens:     p,
		CompletionTokens: c,
		TotalTokens:      p + c,
	}
}
