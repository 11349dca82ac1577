package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/models"
)

// CandidateRepository persists deduplicated candidate videos awaiting
// scoring.
type CandidateRepository interface {
	// Enqueue inserts a candidate keyed by its external video id. The call
	// is idempotent: it reports inserted=false when the id is already
	// enqueued or already has a completed result. Safe under concurrent
	// callers; at most one of two racing enqueues observes inserted=true.
	Enqueue(ctx context.Context, candidate *models.CandidateVideo) (inserted bool, err error)

	// ListPending returns candidates with no completed result, oldest first.
	ListPending(ctx context.Context) ([]*models.CandidateVideo, error)

	// List returns all candidates, newest first.
	List(ctx context.Context) ([]*models.CandidateVideo, error)

	// Remove deletes a candidate once it has graduated to a result or
	// exhausted its retry budget.
	Remove(ctx context.Context, videoID string) error
}

type candidateRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateRepository creates a new CandidateRepository.
func NewCandidateRepository(pool *pgxpool.Pool) CandidateRepository {
	return &candidateRepository{pool: pool}
}

func (r *candidateRepository) Enqueue(ctx context.Context, candidate *models.CandidateVideo) (bool, error) {
	// The anti-join keeps videos that already scored completed from being
	// re-enqueued; ON CONFLICT absorbs the concurrent-duplicate race.
	query := `
		INSERT INTO candidates
			(video_id, title, description, channel_id, channel_title, query, published_at, duration_seconds, discovered_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, now()
		WHERE NOT EXISTS (
			SELECT 1 FROM results WHERE video_id = $1 AND status = 'completed'
		)
		ON CONFLICT (video_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query,
		candidate.VideoID,
		candidate.Title,
		candidate.Description,
		candidate.ChannelID,
		candidate.ChannelTitle,
		candidate.Query,
		candidate.PublishedAt,
		candidate.Duration,
	)
	if err != nil {
		return false, db.WrapError(err, "enqueue candidate")
	}

	return result.RowsAffected() > 0, nil
}

func (r *candidateRepository) ListPending(ctx context.Context) ([]*models.CandidateVideo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.video_id, c.title, c.description, c.channel_id, c.channel_title,
		       c.query, c.published_at, c.duration_seconds, c.discovered_at
		FROM candidates c
		LEFT JOIN results res ON res.video_id = c.video_id AND res.status = 'completed'
		WHERE res.video_id IS NULL
		ORDER BY c.discovered_at ASC
	`)
	if err != nil {
		return nil, db.WrapError(err, "list pending candidates")
	}
	defer rows.Close()

	return scanCandidates(rows)
}

func (r *candidateRepository) List(ctx context.Context) ([]*models.CandidateVideo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT video_id, title, description, channel_id, channel_title,
		       query, published_at, duration_seconds, discovered_at
		FROM candidates
		ORDER BY discovered_at DESC
	`)
	if err != nil {
		return nil, db.WrapError(err, "list candidates")
	}
	defer rows.Close()

	return scanCandidates(rows)
}

func (r *candidateRepository) Remove(ctx context.Context, videoID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM candidates WHERE video_id = $1`, videoID)
	if err != nil {
		return db.WrapError(err, "remove candidate")
	}

	return nil
}

func scanCandidates(rows pgx.Rows) ([]*models.CandidateVideo, error) {
	var candidates []*models.CandidateVideo

	for rows.Next() {
		c := &models.CandidateVideo{}
		err := rows.Scan(
			&c.VideoID,
			&c.Title,
			&c.Description,
			&c.ChannelID,
			&c.ChannelTitle,
			&c.Query,
			&c.PublishedAt,
			&c.Duration,
			&c.DiscoveredAt,
		)
		if err != nil {
			return nil, db.WrapError(err, "scan candidate")
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate candidates")
	}

	return candidates, nil
}

func collectIDs(rows pgx.Rows, into map[string]struct{}) error {
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		into[id] = struct{}{}
	}

	return rows.Err()
}
