package service

import (
	"context"
	"errors"
	"testing"

	"github.com/catalpa-cl/espresso/internal/domain"
	"github.com/catalpa-cl/espresso/internal/domain/feedback"
)

func TestFeedbackCreateRequiresTitle(t *testing.T) {
	svc := NewFeedbackService(newMockStore())
	err := svc.CreateFeedback(context.Background(), &feedback.Feedback{Active: true})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFeedbackCreateAssignsID(t *testing.T) {
	store := newMockStore()
	svc := NewFeedbackService(store)

	f := &feedback.Feedback{TaskTitle: "Essay intro", Active: true}
	if err := svc.CreateFeedback(context.Background(), f); err != nil {
		t.Fatalf("CreateFeedback failed: %v", err)
	}
	if f.ID == "" {
		t.Fatal("expected generated id")
	}
	if _, ok := store.feedbacks[f.ID]; !ok {
		t.Fatal("feedback not persisted")
	}
}

func TestFeedbackAttachCriterionRejectsBadRank(t *testing.T) {
	svc := NewFeedbackService(newMockStore())
	err := svc.AttachCriterion(context.Background(), "f1", "c1", 0)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for rank 0, got %v", err)
	}
}

func TestFeedbackCriteriaOrderedByRank(t *testing.T) {
	store := newMockStore()
	svc := NewFeedbackService(store)
	ctx := context.Background()

	f := &feedback.Feedback{TaskTitle: "Lab report", Active: true}
	if err := svc.CreateFeedback(ctx, f); err != nil {
		t.Fatal(err)
	}
	for _, c := range []feedback.Criterion{
		{ID: "c-grammar", Prompt: "Check grammar.", Active: true},
		{ID: "c-structure", Prompt: "Check structure.", Active: true},
	} {
		c := c
		if err := svc.CreateCriterion(ctx, &c); err != nil {
			t.Fatal(err)
		}
	}

	// Attach out of order; reads must come back rank-sorted.
	if err := svc.AttachCriterion(ctx, f.ID, "c-structure", 2); err != nil {
		t.Fatal(err)
	}
	if err := svc.AttachCriterion(ctx, f.ID, "c-grammar", 1); err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetFeedback(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFeedback failed: %v", err)
	}
	if len(got.Criteria) != 2 {
		t.Fatalf("expected 2 criteria, got %d", len(got.Criteria))
	}
	if got.Criteria[0].ID != "c-grammar" || got.Criteria[1].ID != "c-structure" {
		t.Fatalf("criteria not rank-ordered: %s, %s", got.Criteria[0].ID, got.Criteria[1].ID)
	}
}

func TestFeedbackAttachDuplicateRank(t *testing.T) {
	store := newMockStore()
	svc := NewFeedbackService(store)
	ctx := context.Background()

	f := &feedback.Feedback{TaskTitle: "Lab report", Active: true}
	if err := svc.CreateFeedback(ctx, f); err != nil {
		t.Fatal(err)
	}
	c1 := &feedback.Criterion{ID: "c1", Prompt: "p1", Active: true}
	c2 := &feedback.Criterion{ID: "c2", Prompt: "p2", Active: true}
	if err := svc.CreateCriterion(ctx, c1); err != nil {
		t.Fatal(err)
	}
	if err := svc.CreateCriterion(ctx, c2); err != nil {
		t.Fatal(err)
	}

	if err := svc.AttachCriterion(ctx, f.ID, "c1", 1); err != nil {
		t.Fatal(err)
	}
	if err := svc.AttachCriterion(ctx, f.ID, "c2", 1); err == nil {
		t.Fatal("expected error for duplicate rank")
	}
}

func TestFeedbackDetachCriterion(t *testing.T) {
	store := newMockStore()
	svc := NewFeedbackService(store)
	ctx := context.Background()

	f := &feedback.Feedback{TaskTitle: "Lab report", Active: true}
	if err := svc.CreateFeedback(ctx, f); err != nil {
		t.Fatal(err)
	}
	c := &feedback.Criterion{ID: "c1", Prompt: "p1", Active: true}
	if err := svc.CreateCriterion(ctx, c); err != nil {
		t.Fatal(err)
	}
	if err := svc.AttachCriterion(ctx, f.ID, "c1", 1); err != nil {
		t.Fatal(err)
	}

	if err := svc.DetachCriterion(ctx, f.ID, "c1"); err != nil {
		t.Fatalf("DetachCriterion failed: %v", err)
	}
	got, err := svc.GetFeedback(ctx, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Criteria) != 0 {
		t.Fatalf("expected no criteria after detach, got %d", len(got.Criteria))
	}
}

func TestCriterionCreateRequiresPrompt(t *testing.T) {
	svc := NewFeedbackService(newMockStore())
	err := svc.CreateCriterion(context.Background(), &feedback.Criterion{Title: "Grammar"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestListSessionsClampsLimit(t *testing.T) {
	store := newMockStore()
	svc := NewFeedbackService(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sess := &feedback.Session{
			ID:            string(rune('a' + i)),
			FeedbackID:    "f1",
			CorrelationID: string(rune('x' + i)),
			Status:        feedback.StatusSuccess,
		}
		if _, err := store.CreateSession(ctx, sess); err != nil {
			t.Fatal(err)
		}
	}

	// Zero and out-of-range limits fall back to the default of 100.
	got, err := svc.ListSessions(ctx, "f1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(got))
	}
	got, err = svc.ListSessions(ctx, "other", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no sessions for other feedback, got %d", len(got))
	}
}
