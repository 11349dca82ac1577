package notice

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/internal/db/repository"
	"github.com/securerights/copyright-detection-go/pkg/logger"
)

// ValidationError reports a rejected report submission.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SubmitInput carries the user-supplied fields of a new report.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type SubmitInput struct {
	VideoID           string
	VideoURL          string
	InfringingContent string
	OriginalContent   string
	ProofReferences   []string
}

// Service validates report submissions and drives the report/notice
// lifecycle.
type Service struct {
	reports repository.ReportRepository
	results repository.ResultRepository
	log     *zap.Logger
}

// NewService creates a notice service.
func NewService(reports repository.ReportRepository, results repository.ResultRepository) *Service {
	return &Service{
		reports: reports,
		results: results,
		log:     logger.Named("notice"),
	}
}

// Submit validates and stores a new report for the given user.
func (s *Service) Submit(ctx context.Context, userID string, input *SubmitInput) (*models.NoticeReport, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	report := &models.NoticeReport{
		UserID:            userID,
		VideoID:           strings.TrimSpace(input.VideoID),
		VideoURL:          strings.TrimSpace(input.VideoURL),
		InfringingContent: strings.TrimSpace(input.InfringingContent),
		OriginalContent:   strings.TrimSpace(input.OriginalContent),
		ProofReferences:   input.ProofReferences,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	s.log.Info("report submitted",
		zap.String("report_id", report.ID.String()),
		zap.String("video_id", report.VideoID),
		zap.String("user_id", userID),
	)

	return report, nil
}

// GetReport returns one report.
func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*models.NoticeReport, error) {
	return s.reports.Get(ctx, id)
}

// ListReports returns the reports submitted by one user.
func (s *Service) ListReports(ctx context.Context, userID string) ([]*models.NoticeReport, error) {
	return s.reports.ListByUser(ctx, userID)
}

// BuildNotice renders the notice letter for a report and attaches it,
// moving the report to processing. The scoring result for the reported
// video enriches the body when one has completed; a report without a
// result still produces a valid notice.
func (s *Service) BuildNotice(ctx context.Context, reportID uuid.UUID) (*models.Notice, error) {
	report, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	result, err := s.results.Get(ctx, report.VideoID)
	if err != nil && !db.IsNotFound(err) {
		return nil, err
	}

	body := BuildBody(report, result, time.Now())

	notice, err := s.reports.AttachNotice(ctx, reportID, body)
	if err != nil {
		return nil, err
	}

	s.log.Info("notice attached",
		zap.String("report_id", reportID.String()),
		zap.String("notice_id", notice.ID.String()),
	)

	return notice, nil
}

// GetNotice returns one notice.
func (s *Service) GetNotice(ctx context.Context, id uuid.UUID) (*models.Notice, error) {
	return s.reports.GetNotice(ctx, id)
}

// SetReportStatus transitions a report. Resolving a report with a linked
// notice resolves the notice in the same transaction.
func (s *Service) SetReportStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus, adminNotes *string) (*models.NoticeReport, error) {
	return s.reports.UpdateStatus(ctx, id, status, adminNotes)
}

// SetNoticeStatus transitions a notice and propagates the status to the
// parent report.
func (s *Service) SetNoticeStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus, adminNotes *string) (*models.Notice, error) {
	return s.reports.SetNoticeStatus(ctx, id, status, adminNotes)
}

func validate(input *SubmitInput) error {
	if strings.TrimSpace(input.VideoID) == "" {
		return &ValidationError{Field: "video_id", Message: "is required"}
	}
	if strings.TrimSpace(input.VideoURL) == "" {
		return &ValidationError{Field: "video_url", Message: "is required"}
	}

	u, err := url.Parse(strings.TrimSpace(input.VideoURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "video_url", Message: "must be an absolute URL"}
	}

	if strings.TrimSpace(input.InfringingContent) == "" {
		return &ValidationError{Field: "infringing_content_description", Message: "is required"}
	}
	if strings.TrimSpace(input.OriginalContent) == "" {
		return &ValidationError{Field: "original_content_description", Message: "is required"}
	}

	return nil
}
