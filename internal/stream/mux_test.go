package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catalpa-cl/espresso/internal/domain/feedback"
)

func TestEventsArriveInSendOrder(t *testing.T) {
	m := NewMux()
	ctx := context.Background()

	if err := m.Delta(ctx, 1, "first "); err != nil {
		t.Fatal(err)
	}
	if err := m.Delta(ctx, 1, "second"); err != nil {
		t.Fatal(err)
	}
	if err := m.CriterionComplete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.CriterionError(ctx, 2, "timeout"); err != nil {
		t.Fatal(err)
	}
	if err := m.SessionComplete(ctx, feedback.StatusPartialSuccess); err != nil {
		t.Fatal(err)
	}

	want := []Event{
		{Type: EventDelta, Rank: 1, Text: "first "},
		{Type: EventDelta, Rank: 1, Text: "second"},
		{Type: EventCriterionComplete, Rank: 1},
		{Type: EventCriterionError, Rank: 2, ErrorKind: "timeout"},
		{Type: EventSessionComplete, Status: feedback.StatusPartialSuccess},
	}
	var got []Event
	for ev := range m.Events() {
		got = append(got, ev)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestSessionCompleteClosesStream(t *testing.T) {
	m := NewMux()
	if err := m.SessionComplete(context.Background(), feedback.StatusSuccess); err != nil {
		t.Fatal(err)
	}

	ev, ok := <-m.Events()
	if !ok || ev.Type != EventSessionComplete {
		t.Fatalf("expected session_complete, got %+v ok=%v", ev, ok)
	}
	if _, ok := <-m.Events(); ok {
		t.Fatal("expected channel closed after session_complete")
	}
}

func TestFullBufferBlocksUntilConsumed(t *testing.T) {
	m := NewMuxSize(1)
	ctx := context.Background()

	if err := m.Delta(ctx, 1, "a"); err != nil {
		t.Fatal(err)
	}

	sent := make(chan error, 1)
	go func() { sent <- m.Delta(ctx, 1, "b") }()

	select {
	case err := <-sent:
		t.Fatalf("expected send to block on full buffer, returned %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	<-m.Events()
	if err := <-sent; err != nil {
		t.Fatalf("expected blocked send to complete, got %v", err)
	}
}

func TestCancelledContextUnblocksSend(t *testing.T) {
	m := NewMuxSize(1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := m.Delta(ctx, 1, "a"); err != nil {
		t.Fatal(err)
	}

	sent := make(chan error, 1)
	go func() { sent <- m.Delta(ctx, 1, "b") }()
	cancel()

	if err := <-sent; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewMux()
	m.Close()
	m.Close()
	if _, ok := <-m.Events(); ok {
		t.Fatal("expected closed channel")
	}
}
