// Package llm defines the shared types for talking to LLM backends:
// generation requests, streamed deltas, token usage, and the provider
// error taxonomy.
package llm

import "time"

// Request describes one generation call against a backend endpoint.
// System carries the rendered criterion prompt, User the raw submission.
type Request struct {
	Model  string `json:"model"`
	System string `json:"system"`
	User   string `json:"user"`
}

// Endpoint is the connection half of a provider: where to send the
// request and how to authenticate. The failover invoker passes either
// the primary or the fallback endpoint to the same adapter.
type Endpoint struct {
	URL        string        `json:"url"`
	Credential string        `json:"-"`
	VerifyTLS  bool          `json:"verify_tls"`
	Timeout    time.Duration `json:"timeout"`
}

// Delta is one streamed fragment of a model response.
// A stream ends with exactly one terminal delta: either Done=true
// (optionally carrying usage counts) or Err != nil. The channel is
// closed after the terminal delta.
type Delta struct {
	Text  string
	Done  bool
	Usage *Usage
	Err   error
}

// Usage holds normalized token counts for one generation.
type Usage struct {
	SystemTokens     int `json:"tokens_used_system"`
	UserTokens       int `json:"tokens_used_user"`
	CompletionTokens int `json:"tokens_used_completion"`
}

// Total returns the sum of all token counts.
func (u Usage) Total() int {
	return u.SystemTokens + u.UserTokens + u.CompletionTokens
}

// Add accumulates counts from another usage report.
func (u *Usage) Add(other Usage) {
	u.SystemTokens += other.SystemTokens
	u.UserTokens += other.UserTokens
	u.CompletionTokens += other.CompletionTokens
}
