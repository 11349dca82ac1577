package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/models"
)

// ChannelListRepository manages the allow-list and the known-channel set.
// Both are snapshot-read at cycle start; mid-cycle mutations take effect
// on the next cycle.
type ChannelListRepository interface {
	// AddProtected adds a channel to the allow-list. Re-adding updates the reason.
	AddProtected(ctx context.Context, channel *models.ProtectedChannel) error

	// RemoveProtected removes a channel from the allow-list.
	RemoveProtected(ctx context.Context, channelID string) error

	// ListProtected returns the full allow-list.
	ListProtected(ctx context.Context) ([]*models.ProtectedChannel, error)

	// MarkKnown records that a channel has been surveyed. Idempotent.
	MarkKnown(ctx context.Context, channelID string) error

	// Snapshot returns the allow-list and known-channel ids as sets.
	Snapshot(ctx context.Context) (protected map[string]struct{}, known map[string]struct{}, err error)
}

type channelListRepository struct {
	pool *pgxpool.Pool
}

// NewChannelListRepository creates a new ChannelListRepository.
func NewChannelListRepository(pool *pgxpool.Pool) ChannelListRepository {
	return &channelListRepository{pool: pool}
}

func (r *channelListRepository) AddProtected(ctx context.Context, channel *models.ProtectedChannel) error {
	query := `
		INSERT INTO protected_channels (channel_id, reason, added_at)
		VALUES ($1, $2, now())
		ON CONFLICT (channel_id) DO UPDATE
		SET reason = EXCLUDED.reason
		RETURNING added_at
	`

	err := r.pool.QueryRow(ctx, query, channel.ChannelID, channel.Reason).Scan(&channel.AddedAt)
	if err != nil {
		return db.WrapError(err, "add protected channel")
	}

	return nil
}

func (r *channelListRepository) RemoveProtected(ctx context.Context, channelID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM protected_channels WHERE channel_id = $1`, channelID)
	if err != nil {
		return db.WrapError(err, "remove protected channel")
	}

	if result.RowsAffected() == 0 {
		return db.WrapError(db.ErrNotFound, "remove protected channel")
	}

	return nil
}

func (r *channelListRepository) ListProtected(ctx context.Context) ([]*models.ProtectedChannel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT channel_id, reason, added_at
		FROM protected_channels
		ORDER BY added_at DESC
	`)
	if err != nil {
		return nil, db.WrapError(err, "list protected channels")
	}
	defer rows.Close()

	var channels []*models.ProtectedChannel
	for rows.Next() {
		ch := &models.ProtectedChannel{}
		if err := rows.Scan(&ch.ChannelID, &ch.Reason, &ch.AddedAt); err != nil {
			return nil, db.WrapError(err, "scan protected channel")
		}
		channels = append(channels, ch)
	}

	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate protected channels")
	}

	return channels, nil
}

func (r *channelListRepository) MarkKnown(ctx context.Context, channelID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO known_channels (channel_id, added_at)
		VALUES ($1, now())
		ON CONFLICT (channel_id) DO NOTHING
	`, channelID)
	if err != nil {
		return db.WrapError(err, "mark known channel")
	}

	return nil
}

func (r *channelListRepository) Snapshot(ctx context.Context) (map[string]struct{}, map[string]struct{}, error) {
	protected := make(map[string]struct{})
	known := make(map[string]struct{})

	rows, err := r.pool.Query(ctx, `SELECT channel_id FROM protected_channels`)
	if err != nil {
		return nil, nil, db.WrapError(err, "snapshot protected channels")
	}
	if err := collectIDs(rows, protected); err != nil {
		return nil, nil, db.WrapError(err, "snapshot protected channels")
	}

	rows, err = r.pool.Query(ctx, `SELECT channel_id FROM known_channels`)
	if err != nil {
		return nil, nil, db.WrapError(err, "snapshot known channels")
	}
	if err := collectIDs(rows, known); err != nil {
		return nil, nil, db.WrapError(err, "snapshot known channels")
	}

	return protected, known, nil
}
