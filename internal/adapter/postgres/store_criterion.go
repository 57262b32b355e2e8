package postgres

import (
	"context"
	"fmt"

	"github.com/catalpa-cl/espresso/internal/domain/feedback"
)

const criterionColumns = `id, title, prompt, model_id, active, created_at, updated_at`

func scanCriterion(row scannable) (feedback.Criterion, error) {
	var (
		c       feedback.Criterion
		modelID *string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Prompt, &modelID, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return feedback.Criterion{}, fmt.Errorf("scan criterion: %w", err)
	}
	if modelID != nil {
		c.ModelID = *modelID
	}
	return c, nil
}

func (s *Store) ListCriteria(ctx context.Context) ([]feedback.Criterion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+criterionColumns+` FROM criteria ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	defer rows.Close()

	var criteria []feedback.Criterion
	for rows.Next() {
		c, err := scanCriterion(rows)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, c)
	}
	return criteria, rows.Err()
}

func (s *Store) GetCriterion(ctx context.Context, id string) (*feedback.Criterion, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+criterionColumns+` FROM criteria WHERE id = $1`, id)
	c, err := scanCriterion(row)
	if err != nil {
		return nil, notFoundWrap(err, "get criterion %s", id)
	}
	return &c, nil
}

func (s *Store) CreateCriterion(ctx context.Context, c *feedback.Criterion) error {
	const q = `
		INSERT INTO criteria (id, title, prompt, model_id, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, q,
		c.ID, c.Title, c.Prompt, nullIfEmpty(c.ModelID), c.Active,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create criterion: %w", err)
	}
	return nil
}

func (s *Store) UpdateCriterion(ctx context.Context, c *feedback.Criterion) error {
	const q = `
		UPDATE criteria
		SET title = $2, prompt = $3, model_id = $4, active = $5, updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q,
		c.ID, c.Title, c.Prompt, nullIfEmpty(c.ModelID), c.Active)
	return execExpectOne(tag, err, "update criterion %s", c.ID)
}

func (s *Store) DeleteCriterion(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM criteria WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete criterion %s", id)
}
