// Package stream carries generation output from the orchestrator to a
// single consumer as an ordered event stream. Events for one session are
// grouped strictly by criterion rank: all events of rank n precede any
// event of rank n+1, and the stream ends with exactly one
// session_complete event.
package stream

import "github.com/catalpa-cl/espresso/internal/domain/feedback"

// EventType discriminates the frames of a session stream.
type EventType string

const (
	EventDelta             EventType = "delta"
	EventCriterionComplete EventType = "criterion_complete"
	EventCriterionError    EventType = "criterion_error"
	EventSessionComplete   EventType = "session_complete"
)

// Event is one frame of a session stream. Rank identifies the criterion
// the frame belongs to; it is zero on session_complete, which instead
// carries the folded session status.
type Event struct {
	Type      EventType              `json:"type"`
	Rank      int                    `json:"rank,omitempty"`
	Text      string                 `json:"text,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
	Status    feedback.SessionStatus `json:"status,omitempty"`
}
