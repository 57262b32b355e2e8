package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/catalpa-cl/espresso/internal/domain/provider"
)

const providerColumns = `id, name, kind, endpoint, credential, fallback_endpoint,
	fallback_credential, verify_tls, fallback_enabled, request_timeout_ms,
	token_limit, token_reset_interval_ms, last_reset_at, active, created_at, updated_at`

func scanProvider(row scannable) (provider.Provider, error) {
	var (
		p          provider.Provider
		timeoutMs  int64
		intervalMs int64
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Kind, &p.Endpoint, &p.Credential, &p.FallbackEndpoint,
		&p.FallbackCredential, &p.VerifyTLS, &p.FallbackEnabled, &timeoutMs,
		&p.TokenLimit, &intervalMs, &p.LastResetAt, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return provider.Provider{}, fmt.Errorf("scan provider: %w", err)
	}
	p.RequestTimeout = time.Duration(timeoutMs) * time.Millisecond
	p.TokenResetInterval = time.Duration(intervalMs) * time.Millisecond
	return p, nil
}

func (s *Store) ListProviders(ctx context.Context) ([]provider.Provider, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+providerColumns+` FROM providers ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []provider.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (s *Store) GetProvider(ctx context.Context, id string) (*provider.Provider, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE id = $1`, id)
	p, err := scanProvider(row)
	if err != nil {
		return nil, notFoundWrap(err, "get provider %s", id)
	}
	return &p, nil
}

func (s *Store) CreateProvider(ctx context.Context, p *provider.Provider) error {
	const q = `
		INSERT INTO providers (id, name, kind, endpoint, credential, fallback_endpoint,
			fallback_credential, verify_tls, fallback_enabled, request_timeout_ms,
			token_limit, token_reset_interval_ms, last_reset_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), $13)
		RETURNING last_reset_at, created_at, updated_at`

	err := s.pool.QueryRow(ctx, q,
		p.ID, p.Name, string(p.Kind), p.Endpoint, p.Credential, p.FallbackEndpoint,
		p.FallbackCredential, p.VerifyTLS, p.FallbackEnabled, p.RequestTimeout.Milliseconds(),
		p.TokenLimit, p.TokenResetInterval.Milliseconds(), p.Active,
	).Scan(&p.LastResetAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	return nil
}

func (s *Store) UpdateProvider(ctx context.Context, p *provider.Provider) error {
	const q = `
		UPDATE providers
		SET name = $2, kind = $3, endpoint = $4, credential = $5,
			fallback_endpoint = $6, fallback_credential = $7, verify_tls = $8,
			fallback_enabled = $9, request_timeout_ms = $10, token_limit = $11,
			token_reset_interval_ms = $12, active = $13, updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q,
		p.ID, p.Name, string(p.Kind), p.Endpoint, p.Credential,
		p.FallbackEndpoint, p.FallbackCredential, p.VerifyTLS,
		p.FallbackEnabled, p.RequestTimeout.Milliseconds(), p.TokenLimit,
		p.TokenResetInterval.Milliseconds(), p.Active,
	)
	return execExpectOne(tag, err, "update provider %s", p.ID)
}

func (s *Store) DeleteProvider(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM providers WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete provider %s", id)
}

// RollQuotaWindow advances last_reset_at when the reset interval has
// elapsed. The guard in the WHERE clause makes concurrent rolls settle
// on exactly one winner.
func (s *Store) RollQuotaWindow(ctx context.Context, providerID string, now time.Time) (bool, error) {
	const q = `
		UPDATE providers
		SET last_reset_at = $2, updated_at = now()
		WHERE id = $1
		  AND token_reset_interval_ms > 0
		  AND last_reset_at + make_interval(secs => token_reset_interval_ms / 1000.0) <= $2`

	tag, err := s.pool.Exec(ctx, q, providerID, now)
	if err != nil {
		return false, fmt.Errorf("roll quota window for %s: %w", providerID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UsedTokens sums tokens recorded for a provider's criterion results in
// [from, to). Results are joined through the model that produced them.
func (s *Store) UsedTokens(ctx context.Context, providerID string, from, to time.Time) (int64, error) {
	const q = `
		SELECT COALESCE(SUM(cr.tokens_system + cr.tokens_user + cr.tokens_completion), 0)
		FROM criterion_results cr
		JOIN models m ON m.external_name = cr.model_external_name
		WHERE m.provider_id = $1 AND cr.created_at >= $2 AND cr.created_at < $3`

	var total int64
	if err := s.pool.QueryRow(ctx, q, providerID, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum used tokens for %s: %w", providerID, err)
	}
	return total, nil
}
