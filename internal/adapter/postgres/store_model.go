package postgres

import (
	"context"
	"fmt"

	"github.com/catalpa-cl/espresso/internal/domain/provider"
)

const modelColumns = `id, provider_id, name, external_name, is_default, active, created_at, updated_at`

func scanModel(row scannable) (provider.Model, error) {
	var m provider.Model
	err := row.Scan(
		&m.ID, &m.ProviderID, &m.Name, &m.ExternalName,
		&m.IsDefault, &m.Active, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return provider.Model{}, fmt.Errorf("scan model: %w", err)
	}
	return m, nil
}

func (s *Store) ListModels(ctx context.Context) ([]provider.Model, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+modelColumns+` FROM models ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var models []provider.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func (s *Store) GetModel(ctx context.Context, id string) (*provider.Model, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+modelColumns+` FROM models WHERE id = $1`, id)
	m, err := scanModel(row)
	if err != nil {
		return nil, notFoundWrap(err, "get model %s", id)
	}
	return &m, nil
}

func (s *Store) GetDefaultModel(ctx context.Context) (*provider.Model, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+modelColumns+` FROM models WHERE is_default AND active LIMIT 1`)
	m, err := scanModel(row)
	if err != nil {
		return nil, notFoundWrap(err, "get default model")
	}
	return &m, nil
}

func (s *Store) CreateModel(ctx context.Context, m *provider.Model) error {
	const q = `
		INSERT INTO models (id, provider_id, name, external_name, is_default, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, q,
		m.ID, m.ProviderID, m.Name, m.ExternalName, m.IsDefault, m.Active,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create model: a default model already exists: %w", err)
		}
		return fmt.Errorf("create model: %w", err)
	}
	return nil
}

func (s *Store) UpdateModel(ctx context.Context, m *provider.Model) error {
	const q = `
		UPDATE models
		SET provider_id = $2, name = $3, external_name = $4, is_default = $5,
			active = $6, updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q,
		m.ID, m.ProviderID, m.Name, m.ExternalName, m.IsDefault, m.Active)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("update model: a default model already exists: %w", err)
	}
	return execExpectOne(tag, err, "update model %s", m.ID)
}

func (s *Store) DeleteModel(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM models WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete model %s", id)
}
