package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/models"
)

var (
	// ErrInvalidTransition is returned for a report or notice status change
	// that violates the monotone lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoticeExists is returned when a report already carries a notice.
	ErrNoticeExists = errors.New("report already has a notice")
)

// ReportRepository persists takedown reports and their notices. Notice
// status changes propagate to the parent report in the same transaction.
type ReportRepository interface {
	// Create stores a new report in status=pending.
	Create(ctx context.Context, report *models.NoticeReport) error

	// Get returns one report by id.
	Get(ctx context.Context, id uuid.UUID) (*models.NoticeReport, error)

	// ListByUser returns the reports submitted by one user, newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.NoticeReport, error)

	// UpdateStatus transitions a report, optionally attaching admin notes.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus, adminNotes *string) (*models.NoticeReport, error)

	// AttachNotice transitions a pending report to processing and creates
	// its linked notice in status=pending, atomically.
	AttachNotice(ctx context.Context, reportID uuid.UUID, body string) (*models.Notice, error)

	// GetNotice returns one notice by id.
	GetNotice(ctx context.Context, id uuid.UUID) (*models.Notice, error)

	// SetNoticeStatus transitions a notice and propagates the new status to
	// its parent report in the same transaction.
	SetNoticeStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus, adminNotes *string) (*models.Notice, error)
}

type reportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &reportRepository{pool: pool}
}

const reportColumns = `
	id, user_id, video_id, video_url, infringing_description, original_description,
	proof_refs, status, admin_notes, notice_id, created_at, updated_at
`

func (r *reportRepository) Create(ctx context.Context, report *models.NoticeReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	report.Status = models.ReportStatusPending

	query := `
		INSERT INTO reports
			(id, user_id, video_id, video_url, infringing_description, original_description, proof_refs, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		report.ID,
		report.UserID,
		report.VideoID,
		report.VideoURL,
		report.InfringingContent,
		report.OriginalContent,
		report.ProofReferences,
		report.Status,
	).Scan(&report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return db.WrapError(err, "create report")
	}

	return nil
}

func (r *reportRepository) Get(ctx context.Context, id uuid.UUID) (*models.NoticeReport, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)

	report, err := scanReport(row)
	if err != nil {
		return nil, db.WrapError(err, "get report")
	}

	return report, nil
}

func (r *reportRepository) ListByUser(ctx context.Context, userID string) ([]*models.NoticeReport, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, db.WrapError(err, "list reports by user")
	}
	defer rows.Close()

	var reports []*models.NoticeReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, db.WrapError(err, "scan report")
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate reports")
	}

	return reports, nil
}

func (r *reportRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus, adminNotes *string) (*models.NoticeReport, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, db.WrapError(err, "begin update report status")
	}
	defer tx.Rollback(ctx)

	report, err := lockReport(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !report.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("report %s -> %s: %w", report.Status, status, ErrInvalidTransition)
	}

	if err := updateReportRow(ctx, tx, report, status, adminNotes); err != nil {
		return nil, err
	}

	// Keep the linked notice in step when the report is resolved directly.
	if report.NoticeID != nil && (status == models.ReportStatusCompleted || status == models.ReportStatusRejected) {
		if _, err := tx.Exec(ctx,
			`UPDATE notices SET status = $1, updated_at = now() WHERE id = $2`,
			status, *report.NoticeID,
		); err != nil {
			return nil, db.WrapError(err, "propagate status to notice")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, db.WrapError(err, "commit report status")
	}

	return report, nil
}

func (r *reportRepository) AttachNotice(ctx context.Context, reportID uuid.UUID, body string) (*models.Notice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, db.WrapError(err, "begin attach notice")
	}
	defer tx.Rollback(ctx)

	report, err := lockReport(ctx, tx, reportID)
	if err != nil {
		return nil, err
	}

	if report.NoticeID != nil {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrNoticeExists)
	}
	if !report.Status.CanTransitionTo(models.ReportStatusProcessing) {
		return nil, fmt.Errorf("report %s -> processing: %w", report.Status, ErrInvalidTransition)
	}

	notice := &models.Notice{
		ID:       uuid.New(),
		ReportID: reportID,
		Body:     body,
		Status:   models.ReportStatusPending,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO notices (id, report_id, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING created_at, updated_at
	`, notice.ID, notice.ReportID, notice.Body, notice.Status).Scan(&notice.CreatedAt, &notice.UpdatedAt)
	if err != nil {
		return nil, db.WrapError(err, "insert notice")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE reports SET status = 'processing', notice_id = $1, updated_at = now() WHERE id = $2
	`, notice.ID, reportID); err != nil {
		return nil, db.WrapError(err, "link notice to report")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, db.WrapError(err, "commit attach notice")
	}

	return notice, nil
}

func (r *reportRepository) GetNotice(ctx context.Context, id uuid.UUID) (*models.Notice, error) {
	notice := &models.Notice{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, report_id, body, status, created_at, updated_at
		FROM notices WHERE id = $1
	`, id).Scan(&notice.ID, &notice.ReportID, &notice.Body, &notice.Status, &notice.CreatedAt, &notice.UpdatedAt)
	if err != nil {
		return nil, db.WrapError(err, "get notice")
	}

	return notice, nil
}

func (r *reportRepository) SetNoticeStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus, adminNotes *string) (*models.Notice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, db.WrapError(err, "begin notice status")
	}
	defer tx.Rollback(ctx)

	notice := &models.Notice{}
	err = tx.QueryRow(ctx, `
		SELECT id, report_id, body, status, created_at, updated_at
		FROM notices WHERE id = $1
		FOR UPDATE
	`, id).Scan(&notice.ID, &notice.ReportID, &notice.Body, &notice.Status, &notice.CreatedAt, &notice.UpdatedAt)
	if err != nil {
		return nil, db.WrapError(err, "lock notice")
	}

	if !notice.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("notice %s -> %s: %w", notice.Status, status, ErrInvalidTransition)
	}

	err = tx.QueryRow(ctx, `
		UPDATE notices SET status = $1, updated_at = now() WHERE id = $2
		RETURNING updated_at
	`, status, id).Scan(&notice.UpdatedAt)
	if err != nil {
		return nil, db.WrapError(err, "update notice status")
	}
	notice.Status = status

	// Resolving the notice resolves the parent report in the same
	// transaction; processing advances a still-pending report.
	report, err := lockReport(ctx, tx, notice.ReportID)
	if err != nil {
		return nil, err
	}
	if report.Status != status && report.Status.CanTransitionTo(status) {
		if err := updateReportRow(ctx, tx, report, status, adminNotes); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, db.WrapError(err, "commit notice status")
	}

	return notice, nil
}

func lockReport(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.NoticeReport, error) {
	row := tx.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1 FOR UPDATE`, id)

	report, err := scanReport(row)
	if err != nil {
		return nil, db.WrapError(err, "lock report")
	}

	return report, nil
}

func updateReportRow(ctx context.Context, tx pgx.Tx, report *models.NoticeReport, status models.ReportStatus, adminNotes *string) error {
	err := tx.QueryRow(ctx, `
		UPDATE reports
		SET status = $1,
		    admin_notes = COALESCE($2, admin_notes),
		    updated_at = now()
		WHERE id = $3
		RETURNING updated_at
	`, status, adminNotes, report.ID).Scan(&report.UpdatedAt)
	if err != nil {
		return db.WrapError(err, "update report status")
	}

	report.Status = status
	if adminNotes != nil {
		report.AdminNotes = adminNotes
	}

	return nil
}

func scanReport(row pgx.Row) (*models.NoticeReport, error) {
	report := &models.NoticeReport{}
	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.VideoID,
		&report.VideoURL,
		&report.InfringingContent,
		&report.OriginalContent,
		&report.ProofReferences,
		&report.Status,
		&report.AdminNotes,
		&report.NoticeID,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return report, nil
}
