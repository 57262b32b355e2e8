package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/catalpa-cl/espresso/internal/domain/llm"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
	"github.com/catalpa-cl/espresso/internal/port/database"
	"github.com/catalpa-cl/espresso/internal/tokens"
)

// QuotaService enforces per-provider token budgets. Usage is aggregated
// from persisted criterion results within the provider's current reset
// window; the upcoming call is charged with a conservative estimate.
type QuotaService struct {
	store database.Store
	est   *tokens.Estimator
	now   func() time.Time // for testing
}

// NewQuotaService creates a QuotaService using the given estimator.
func NewQuotaService(store database.Store, est *tokens.Estimator) *QuotaService {
	return &QuotaService{store: store, est: est, now: time.Now}
}

// Check verifies that p has budget left for a call carrying the given
// texts. A provider without a token limit always passes. Exceeding the
// budget fails with kind quota_exceeded, which is terminal for the
// criterion but never aborts the session.
func (s *QuotaService) Check(ctx context.Context, p *provider.Provider, texts ...string) error {
	if p.TokenLimit <= 0 {
		return nil
	}

	now := s.now()
	rolled, err := s.store.RollQuotaWindow(ctx, p.ID, now)
	if err != nil {
		return fmt.Errorf("roll quota window: %w", err)
	}
	if rolled {
		p.LastResetAt = now
		slog.Debug("quota window rolled", "provider", p.Name, "reset_at", now)
	}

	used, err := s.store.UsedTokens(ctx, p.ID, p.LastResetAt, now)
	if err != nil {
		return fmt.Errorf("sum used tokens: %w", err)
	}

	estimate := s.est.EstimateAll(texts...)
	if used+estimate > p.TokenLimit {
		slog.Warn("provider over token quota",
			"provider", p.Name, "used", used, "estimate", estimate, "limit", p.TokenLimit)
		return llm.NewProviderError(llm.KindQuotaExceeded, p.Endpoint,
			fmt.Errorf("used %d + estimated %d exceeds limit %d", used, estimate, p.TokenLimit))
	}
	return nil
}
