package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/catalpa-cl/espresso/internal/domain"
	"github.com/catalpa-cl/espresso/internal/domain/feedback"
	"github.com/catalpa-cl/espresso/internal/port/broadcast"
	"github.com/catalpa-cl/espresso/internal/port/database"
	"github.com/catalpa-cl/espresso/internal/port/messagequeue"
)

// RecorderService persists finished sessions exactly once per
// correlation id. The first write wins; repeats from client retries or
// reconnecting proxies are no-ops and publish nothing.
type RecorderService struct {
	store       database.Store
	queue       messagequeue.Queue    // nil disables event publishing
	broadcaster broadcast.Broadcaster // nil disables dashboard pushes
	now         func() time.Time      // for testing
}

// NewRecorderService creates a RecorderService. queue and broadcaster
// may be nil.
func NewRecorderService(store database.Store, queue messagequeue.Queue, b broadcast.Broadcaster) *RecorderService {
	return &RecorderService{store: store, queue: queue, broadcaster: b, now: time.Now}
}

// Record writes the session and, on a first write, publishes the
// completion event. Returns whether this call performed the write.
func (s *RecorderService) Record(ctx context.Context, sess *feedback.Session) (bool, error) {
	if sess.CorrelationID == "" {
		return false, fmt.Errorf("session missing correlation id")
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	if sess.Status == "" {
		sess.Status = feedback.FoldStatus(sess.Results)
	}

	inserted, err := s.store.CreateSession(ctx, sess)
	if err != nil {
		return false, fmt.Errorf("record session: %w", err)
	}
	if !inserted {
		slog.Debug("duplicate session finalize ignored",
			"correlation_id", sess.CorrelationID)
		return false, nil
	}

	slog.Info("session recorded",
		"session_id", sess.ID,
		"feedback_id", sess.FeedbackID,
		"status", sess.Status,
		"results", len(sess.Results),
	)
	s.publishCompleted(ctx, sess)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(ctx, "session.completed", sess)
	}
	return true, nil
}

// Score stores the NPS score on a recorded session and publishes the
// scored event.
func (s *RecorderService) Score(ctx context.Context, sessionID string, score int) error {
	if score < 0 || score > 10 {
		return fmt.Errorf("%w: nps score %d out of range 0..10", domain.ErrValidation, score)
	}
	if err := s.store.SetSessionScore(ctx, sessionID, score); err != nil {
		return fmt.Errorf("set session score: %w", err)
	}
	if s.queue != nil {
		data, _ := json.Marshal(messagequeue.SessionScoredPayload{
			SessionID: sessionID,
			NPSScore:  score,
		})
		if err := s.queue.Publish(ctx, messagequeue.SubjectSessionScored, data); err != nil {
			slog.Warn("publish scored event failed", "session_id", sessionID, "error", err)
		}
	}
	return nil
}

func (s *RecorderService) publishCompleted(ctx context.Context, sess *feedback.Session) {
	if s.queue == nil {
		return
	}
	payload := messagequeue.SessionCompletedPayload{
		SessionID:     sess.ID,
		FeedbackID:    sess.FeedbackID,
		CorrelationID: sess.CorrelationID,
		Status:        string(sess.Status),
		Results:       make([]messagequeue.CriterionResultPayload, 0, len(sess.Results)),
	}
	for _, r := range sess.Results {
		payload.Results = append(payload.Results, messagequeue.CriterionResultPayload{
			Rank:        r.Rank,
			CriterionID: r.CriterionID,
			Status:      string(r.Status),
			ErrorKind:   string(r.ErrorKind),
			TokensTotal: r.Usage.Total(),
		})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("marshal completed event failed", "session_id", sess.ID, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectSessionCompleted, data); err != nil {
		slog.Warn("publish completed event failed", "session_id", sess.ID, "error", err)
	}
}
