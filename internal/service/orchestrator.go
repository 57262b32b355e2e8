package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	espotel "github.com/catalpa-cl/espresso/internal/adapter/otel"
	"github.com/catalpa-cl/espresso/internal/domain/feedback"
	"github.com/catalpa-cl/espresso/internal/domain/llm"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
	"github.com/catalpa-cl/espresso/internal/port/database"
	"github.com/catalpa-cl/espresso/internal/port/llmbackend"
	"github.com/catalpa-cl/espresso/internal/resilience"
	"github.com/catalpa-cl/espresso/internal/stream"
)

// ErrConfiguration marks a run rejected before any provider call:
// unknown or inactive feedback, no active criteria, duplicate ranks, or
// an unresolvable model. Callers map it to a client error, not to a
// failed session.
var ErrConfiguration = errors.New("feedback configuration invalid")

// RunRequest describes one submission to orchestrate.
type RunRequest struct {
	FeedbackID    string
	Submission    string
	CorrelationID string
}

// criterionPlan is the resolved execution snapshot for one criterion.
// Snapshots are taken before streaming starts so admin edits during a
// run have no effect on it.
type criterionPlan struct {
	criterion feedback.RankedCriterion
	model     *provider.Model
	provider  *provider.Provider
	generator llmbackend.Generator
}

// OrchestratorService runs feedback sessions: it sequences the active
// criteria of a feedback by rank, generates each criterion's text via
// the failover invoker, streams events through a mux, and hands the
// finished result set to the recorder exactly once.
type OrchestratorService struct {
	store     database.Store
	catalog   *CatalogService
	providers *ProviderService
	quota     *QuotaService
	recorder  *RecorderService
	invoker   *resilience.Invoker
	metrics   *espotel.Metrics

	// recordTimeout bounds the detached persistence context so cancelled
	// runs still get written without holding resources forever.
	recordTimeout time.Duration

	newGenerator func(kind provider.Kind) (llmbackend.Generator, error)
}

// NewOrchestratorService creates an OrchestratorService. metrics may be nil.
func NewOrchestratorService(
	store database.Store,
	catalog *CatalogService,
	providers *ProviderService,
	quota *QuotaService,
	recorder *RecorderService,
	invoker *resilience.Invoker,
	metrics *espotel.Metrics,
) *OrchestratorService {
	return &OrchestratorService{
		store:         store,
		catalog:       catalog,
		providers:     providers,
		quota:         quota,
		recorder:      recorder,
		invoker:       invoker,
		metrics:       metrics,
		recordTimeout: 10 * time.Second,
		newGenerator:  llmbackend.New,
	}
}

// SetRecordTimeout overrides the persistence budget for finished runs.
// Zero or negative values are ignored.
func (s *OrchestratorService) SetRecordTimeout(d time.Duration) {
	if d > 0 {
		s.recordTimeout = d
	}
}

// Run executes one orchestration run, emitting events to mux as they
// happen, and returns the recorded session. Cancellation stops the
// in-flight provider call; whatever finished before it is still
// recorded. A validation failure returns ErrConfiguration before any
// event is emitted and records nothing.
func (s *OrchestratorService) Run(ctx context.Context, req RunRequest, mux *stream.Mux) (*feedback.Session, error) {
	defer mux.Close()

	f, plans, err := s.plan(ctx, req.FeedbackID)
	if err != nil {
		return nil, err
	}

	ctx, span := espotel.StartSessionSpan(ctx, req.CorrelationID, req.FeedbackID)
	defer span.End()
	if s.metrics != nil {
		s.metrics.SessionsStarted.Add(ctx, 1)
	}

	start := time.Now()
	slog.Info("session started",
		"feedback_id", req.FeedbackID,
		"correlation_id", req.CorrelationID,
		"criteria", len(plans),
	)

	sess := &feedback.Session{
		FeedbackID:    req.FeedbackID,
		CorrelationID: req.CorrelationID,
		Submission:    req.Submission,
	}

	// The recorder always runs, including for cancelled runs, on a
	// context detached from the client connection.
	defer func() {
		sess.Status = feedback.FoldStatus(sess.Results)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTimeout)
		defer cancel()
		if _, err := s.recorder.Record(rctx, sess); err != nil {
			slog.Error("session recording failed",
				"correlation_id", sess.CorrelationID, "error", err)
		}
		s.observeCompletion(rctx, sess, time.Since(start))
	}()

	for _, plan := range plans {
		if ctx.Err() != nil {
			break
		}
		result := s.runCriterion(ctx, f, plan, sess.Submission, mux)
		if result == nil {
			// Cancelled before this criterion finished.
			break
		}
		sess.Results = append(sess.Results, *result)

		var sendErr error
		if result.Status == feedback.ResultSuccess {
			sendErr = mux.CriterionComplete(ctx, result.Rank)
		} else {
			sendErr = mux.CriterionError(ctx, result.Rank, string(result.ErrorKind))
		}
		if sendErr != nil {
			break
		}
	}

	status := feedback.FoldStatus(sess.Results)
	if err := mux.SessionComplete(ctx, status); err != nil {
		slog.Debug("consumer gone before session_complete",
			"correlation_id", sess.CorrelationID)
	}
	return sess, ctx.Err()
}

// plan validates the feedback configuration and resolves every
// criterion's model, provider, and adapter before any streaming starts.
func (s *OrchestratorService) plan(ctx context.Context, feedbackID string) (*feedback.Feedback, []criterionPlan, error) {
	f, err := s.store.GetFeedback(ctx, feedbackID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load feedback %s: %v", ErrConfiguration, feedbackID, err)
	}
	if !f.Active {
		return nil, nil, fmt.Errorf("%w: feedback %s is inactive", ErrConfiguration, feedbackID)
	}
	if len(f.Criteria) == 0 {
		return nil, nil, fmt.Errorf("%w: feedback %s has no active criteria", ErrConfiguration, feedbackID)
	}

	seen := make(map[int]bool, len(f.Criteria))
	plans := make([]criterionPlan, 0, len(f.Criteria))
	for _, rc := range f.Criteria {
		if seen[rc.Rank] {
			return nil, nil, fmt.Errorf("%w: duplicate rank %d", ErrConfiguration, rc.Rank)
		}
		seen[rc.Rank] = true

		m, p, err := s.catalog.ResolveModel(ctx, rc.ModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: criterion %s: %v", ErrConfiguration, rc.ID, err)
		}
		if !p.Active {
			return nil, nil, fmt.Errorf("%w: provider %s is inactive", ErrConfiguration, p.Name)
		}
		snap, err := s.providers.Snapshot(p)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: provider %s credentials: %v", ErrConfiguration, p.Name, err)
		}
		gen, err := s.newGenerator(p.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		plans = append(plans, criterionPlan{
			criterion: rc,
			model:     m,
			provider:  snap,
			generator: gen,
		})
	}

	// GetFeedback returns criteria rank-ordered; the plan preserves it.
	return f, plans, nil
}

// runCriterion produces the CriterionResult for one planned criterion.
// A terminal failure never aborts the session; the caller moves on to
// the next rank. A nil result means the run was cancelled before this
// criterion produced a recordable outcome.
func (s *OrchestratorService) runCriterion(ctx context.Context, f *feedback.Feedback, plan criterionPlan, submission string, mux *stream.Mux) *feedback.CriterionResult {
	rank := plan.criterion.Rank
	result := &feedback.CriterionResult{
		ID:                uuid.NewString(),
		Rank:              rank,
		CriterionID:       plan.criterion.ID,
		ModelExternalName: plan.model.ExternalName,
		CreatedAt:         time.Now(),
	}

	ctx, span := espotel.StartCriterionSpan(ctx, plan.criterion.ID, rank)
	defer span.End()
	start := time.Now()

	system, err := RenderPrompt(plan.criterion.Prompt, f, submission)
	if err != nil {
		slog.Warn("criterion template unresolved",
			"criterion_id", plan.criterion.ID, "error", err)
		result.Status = feedback.ResultError
		result.ErrorKind = llm.KindTemplate
		return result
	}

	if err := s.quota.Check(ctx, plan.provider, system, submission); err != nil {
		result.Status = feedback.ResultError
		result.ErrorKind = llm.KindOf(err)
		return result
	}

	if s.metrics != nil {
		s.metrics.ProviderCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider.kind", string(plan.provider.Kind))))
	}

	req := llm.Request{Model: plan.model.ExternalName, System: system, User: submission}
	res, err := s.invoker.Do(ctx, plan.provider, plan.generator, req, func(text string) error {
		return mux.Delta(ctx, rank, text)
	})
	s.observeCriterion(ctx, plan, time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		result.Status = feedback.ResultError
		result.ErrorKind = llm.KindOf(err)
		s.providers.ReportDegraded(ctx, plan.provider, result.ErrorKind, "none")
		return result
	}

	result.Status = feedback.ResultSuccess
	result.Text = res.Text
	result.Usage = res.Usage
	if res.Route == resilience.RouteFallback {
		if s.metrics != nil {
			s.metrics.FallbackAttempts.Add(ctx, 1)
		}
		s.providers.ReportDegraded(ctx, plan.provider, "", string(res.Route))
	}
	if s.metrics != nil {
		s.metrics.TokensUsed.Add(ctx, int64(res.Usage.Total()), metric.WithAttributes(
			attribute.String("provider.kind", string(plan.provider.Kind))))
	}
	return result
}

func (s *OrchestratorService) observeCriterion(ctx context.Context, plan criterionPlan, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.CriterionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("provider.kind", string(plan.provider.Kind))))
}

func (s *OrchestratorService) observeCompletion(ctx context.Context, sess *feedback.Session, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionDuration.Record(ctx, d.Seconds())
	if sess.Status == feedback.StatusFailed {
		s.metrics.SessionsFailed.Add(ctx, 1)
		return
	}
	s.metrics.SessionsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("session.status", string(sess.Status))))
}
