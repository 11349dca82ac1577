package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/models"
)

// ResultRepository persists per-video scoring results. At most one result
// exists per external video id; repeated scoring attempts update it.
type ResultRepository interface {
	// BeginScoring creates the result in status=scoring (create-if-absent)
	// and increments the attempt counter, returning the new count. A
	// completed result is never regressed; begun reports whether the
	// transition took place.
	BeginScoring(ctx context.Context, videoID string) (attempts int, begun bool, err error)

	// Upsert creates or replaces the result for a video id. Last write
	// wins, except that a completed result is never replaced by a
	// non-completed one.
	Upsert(ctx context.Context, result *models.Result) error

	// Get returns the result for one video id.
	Get(ctx context.Context, videoID string) (*models.Result, error)

	// List returns results matching the filter, newest first.
	List(ctx context.Context, filters *ResultFilters) ([]*models.Result, error)
}

// ResultFilters contains filter options for listing results.
type ResultFilters struct {
	Status        models.ResultStatus
	MinPercentage *float64
}

type resultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) ResultRepository {
	return &resultRepository{pool: pool}
}

const resultColumns = `
	video_id, percentage, intervals, total_duration, status,
	failure_kind, failure_message, attempts, processed_at, created_at, updated_at
`

func (r *resultRepository) BeginScoring(ctx context.Context, videoID string) (int, bool, error) {
	query := `
		INSERT INTO results (video_id, percentage, intervals, total_duration, status, attempts, created_at, updated_at)
		VALUES ($1, 0, '[]'::jsonb, 0, 'scoring', 1, now(), now())
		ON CONFLICT (video_id) DO UPDATE
		SET status = 'scoring',
		    attempts = results.attempts + 1,
		    updated_at = now()
		WHERE results.status <> 'completed'
		RETURNING attempts
	`

	var attempts int
	err := r.pool.QueryRow(ctx, query, videoID).Scan(&attempts)
	if err != nil {
		// No row means the guard refused to regress a completed result.
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, db.WrapError(err, "begin scoring")
	}

	return attempts, true, nil
}

func (r *resultRepository) Upsert(ctx context.Context, res *models.Result) error {
	intervals, err := json.Marshal(res.Intervals)
	if err != nil {
		return fmt.Errorf("marshal intervals: %w", err)
	}

	query := `
		INSERT INTO results
			(video_id, percentage, intervals, total_duration, status,
			 failure_kind, failure_message, attempts, processed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (video_id) DO UPDATE
		SET percentage = EXCLUDED.percentage,
		    intervals = EXCLUDED.intervals,
		    total_duration = EXCLUDED.total_duration,
		    status = EXCLUDED.status,
		    failure_kind = EXCLUDED.failure_kind,
		    failure_message = EXCLUDED.failure_message,
		    attempts = GREATEST(results.attempts, EXCLUDED.attempts),
		    processed_at = EXCLUDED.processed_at,
		    updated_at = now()
		WHERE results.status <> 'completed' OR EXCLUDED.status = 'completed'
		RETURNING created_at, updated_at
	`

	err = r.pool.QueryRow(ctx, query,
		res.VideoID,
		res.Percentage,
		intervals,
		res.TotalDuration,
		res.Status,
		res.FailureKind,
		res.FailureMessage,
		res.Attempts,
		res.ProcessedAt,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		// No row returned means the guard refused to regress a completed
		// result; that is not an error for an idempotent upsert.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return db.WrapError(err, "upsert result")
	}

	return nil
}

func (r *resultRepository) Get(ctx context.Context, videoID string) (*models.Result, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM results WHERE video_id = $1`, videoID)

	res, err := scanResult(row)
	if err != nil {
		return nil, db.WrapError(err, "get result")
	}

	return res, nil
}

func (r *resultRepository) List(ctx context.Context, filters *ResultFilters) ([]*models.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results`
	args := []interface{}{}
	argPos := 1

	where := ""
	if filters != nil && filters.Status != "" {
		where = fmt.Sprintf(" WHERE status = $%d", argPos)
		args = append(args, filters.Status)
		argPos++
	}
	if filters != nil && filters.MinPercentage != nil {
		if where == "" {
			where = fmt.Sprintf(" WHERE percentage > $%d", argPos)
		} else {
			where += fmt.Sprintf(" AND percentage > $%d", argPos)
		}
		args = append(args, *filters.MinPercentage)
	}

	rows, err := r.pool.Query(ctx, query+where+` ORDER BY updated_at DESC`, args...)
	if err != nil {
		return nil, db.WrapError(err, "list results")
	}
	defer rows.Close()

	var results []*models.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, db.WrapError(err, "scan result")
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate results")
	}

	return results, nil
}

func scanResult(row pgx.Row) (*models.Result, error) {
	res := &models.Result{}
	var intervals []byte
	var processedAt *time.Time

	err := row.Scan(
		&res.VideoID,
		&res.Percentage,
		&intervals,
		&res.TotalDuration,
		&res.Status,
		&res.FailureKind,
		&res.FailureMessage,
		&res.Attempts,
		&processedAt,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	res.ProcessedAt = processedAt
	if len(intervals) > 0 {
		if err := json.Unmarshal(intervals, &res.Intervals); err != nil {
			return nil, fmt.Errorf("unmarshal intervals: %w", err)
		}
	}

	return res, nil
}
