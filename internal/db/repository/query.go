// Package repository contains the PostgreSQL persistence layer of the
// detection pipeline.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/models"
)

// QueryRepository manages the operator-configured search queries.
type QueryRepository interface {
	// Create stores a new search query. Duplicate phrases are rejected.
	Create(ctx context.Context, query *models.SearchQuery) error

	// Delete removes a search query by id.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns all search queries, newest first.
	List(ctx context.Context) ([]*models.SearchQuery, error)
}

type queryRepository struct {
	pool *pgxpool.Pool
}

// NewQueryRepository creates a new QueryRepository.
func NewQueryRepository(pool *pgxpool.Pool) QueryRepository {
	return &queryRepository{pool: pool}
}

func (r *queryRepository) Create(ctx context.Context, query *models.SearchQuery) error {
	sql := `
		INSERT INTO queries (id, phrase, created_at)
		VALUES ($1, $2, now())
		RETURNING created_at
	`

	if query.ID == uuid.Nil {
		query.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, sql, query.ID, query.Phrase).Scan(&query.CreatedAt)
	if err != nil {
		return db.WrapError(err, "create query")
	}

	return nil
}

func (r *queryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM queries WHERE id = $1`, id)
	if err != nil {
		return db.WrapError(err, "delete query")
	}

	if result.RowsAffected() == 0 {
		return db.WrapError(db.ErrNotFound, "delete query")
	}

	return nil
}

func (r *queryRepository) List(ctx context.Context) ([]*models.SearchQuery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, phrase, created_at
		FROM queries
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, db.WrapError(err, "list queries")
	}
	defer rows.Close()

	var queries []*models.SearchQuery
	for rows.Next() {
		q := &models.SearchQuery{}
		if err := rows.Scan(&q.ID, &q.Phrase, &q.CreatedAt); err != nil {
			return nil, db.WrapError(err, "scan query")
		}
		queries = append(queries, q)
	}

	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate queries")
	}

	return queries, nil
}
