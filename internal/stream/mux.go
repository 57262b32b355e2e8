package stream

import (
	"context"
	"sync"

	"github.com/catalpa-cl/espresso/internal/domain/feedback"
)

const defaultBuffer = 64

// Mux is the single-producer, single-consumer event channel for one
// session run. Sends block when the consumer lags (bounded buffer, no
// drops); the producer observes consumer departure through the context.
type Mux struct {
	ch        chan Event
	closeOnce sync.Once
}

// NewMux creates a Mux with the default buffer size.
func NewMux() *Mux {
	return NewMuxSize(defaultBuffer)
}

// NewMuxSize creates a Mux buffering up to size events.
func NewMuxSize(size int) *Mux {
	if size < 1 {
		size = 1
	}
	return &Mux{ch: make(chan Event, size)}
}

// Events returns the consumer side of the stream. The channel is closed
// after the session_complete event, or on Close.
func (m *Mux) Events() <-chan Event {
	return m.ch
}

// Delta emits one text fragment for the criterion at rank.
func (m *Mux) Delta(ctx context.Context, rank int, text string) error {
	return m.send(ctx, Event{Type: EventDelta, Rank: rank, Text: text})
}

// CriterionComplete marks the criterion at rank as finished successfully.
func (m *Mux) CriterionComplete(ctx context.Context, rank int) error {
	return m.send(ctx, Event{Type: EventCriterionComplete, Rank: rank})
}

// CriterionError marks the criterion at rank as failed with the given
// error kind. The stream continues with the next rank.
func (m *Mux) CriterionError(ctx context.Context, rank int, kind string) error {
	return m.send(ctx, Event{Type: EventCriterionError, Rank: rank, ErrorKind: kind})
}

// SessionComplete emits the terminal event and closes the stream.
func (m *Mux) SessionComplete(ctx context.Context, status feedback.SessionStatus) error {
	err := m.send(ctx, Event{Type: EventSessionComplete, Status: status})
	m.Close()
	return err
}

// Close closes the event channel. Safe to call more than once; callers
// must not send after Close.
func (m *Mux) Close() {
	m.closeOnce.Do(func() { close(m.ch) })
}

func (m *Mux) send(ctx context.Context, ev Event) error {
	select {
	case m.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
