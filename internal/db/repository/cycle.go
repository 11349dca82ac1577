package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/models"
)

// CycleRepository persists the per-cycle counter records.
type CycleRepository interface {
	// Create stores a cycle record in status=running.
	Create(ctx context.Context, record *models.CycleRecord) error

	// Finish writes the final counters and status of a cycle.
	Finish(ctx context.Context, record *models.CycleRecord) error

	// List returns the most recent cycle records.
	List(ctx context.Context, limit int) ([]*models.CycleRecord, error)
}

type cycleRepository struct {
	pool *pgxpool.Pool
}

// NewCycleRepository creates a new CycleRepository.
func NewCycleRepository(pool *pgxpool.Pool) CycleRepository {
	return &cycleRepository{pool: pool}
}

func (r *cycleRepository) Create(ctx context.Context, record *models.CycleRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Status = models.CycleStatusRunning

	err := r.pool.QueryRow(ctx, `
		INSERT INTO cycles (id, status, started_at)
		VALUES ($1, $2, now())
		RETURNING started_at
	`, record.ID, record.Status).Scan(&record.StartedAt)
	if err != nil {
		return db.WrapError(err, "create cycle record")
	}

	return nil
}

func (r *cycleRepository) Finish(ctx context.Context, record *models.CycleRecord) error {
	now := time.Now()
	record.FinishedAt = &now

	_, err := r.pool.Exec(ctx, `
		UPDATE cycles
		SET status = $1,
		    queries_attempted = $2,
		    queries_succeeded = $3,
		    candidates_discovered = $4,
		    candidates_enqueued = $5,
		    scoring_attempts = $6,
		    scoring_successes = $7,
		    scoring_failures = $8,
		    error = $9,
		    finished_at = $10
		WHERE id = $11
	`,
		record.Status,
		record.QueriesAttempted,
		record.QueriesSucceeded,
		record.CandidatesDiscovered,
		record.CandidatesEnqueued,
		record.ScoringAttempts,
		record.ScoringSuccesses,
		record.ScoringFailures,
		record.Error,
		record.FinishedAt,
		record.ID,
	)
	if err != nil {
		return db.WrapError(err, "finish cycle record")
	}

	return nil
}

func (r *cycleRepository) List(ctx context.Context, limit int) ([]*models.CycleRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, status, queries_attempted, queries_succeeded,
		       candidates_discovered, candidates_enqueued,
		       scoring_attempts, scoring_successes, scoring_failures,
		       error, started_at, finished_at
		FROM cycles
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, db.WrapError(err, "list cycles")
	}
	defer rows.Close()

	var records []*models.CycleRecord
	for rows.Next() {
		rec := &models.CycleRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.Status,
			&rec.QueriesAttempted,
			&rec.QueriesSucceeded,
			&rec.CandidatesDiscovered,
			&rec.CandidatesEnqueued,
			&rec.ScoringAttempts,
			&rec.ScoringSuccesses,
			&rec.ScoringFailures,
			&rec.Error,
			&rec.StartedAt,
			&rec.FinishedAt,
		)
		if err != nil {
			return nil, db.WrapError(err, "scan cycle record")
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate cycles")
	}

	return records, nil
}
