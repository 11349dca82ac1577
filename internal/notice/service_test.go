package notice

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/internal/db/repository"
)

type fakeReportRepo struct {
	reports map[uuid.UUID]*models.NoticeReport
	notices map[uuid.UUID]*models.Notice
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{
		reports: map[uuid.UUID]*models.NoticeReport{},
		notices: map[uuid.UUID]*models.Notice{},
	}
}

func (f *fakeReportRepo) Create(ctx context.Context, report *models.NoticeReport) error {
	report.ID = uuid.New()
	report.Status = models.ReportStatusPending
	f.reports[report.ID] = report
	return nil
}

func (f *fakeReportRepo) Get(ctx context.Context, id uuid.UUID) (*models.NoticeReport, error) {
	report, ok := f.reports[id]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "get report")
	}
	return report, nil
}

func (f *fakeReportRepo) ListByUser(ctx context.Context, userID string) ([]*models.NoticeReport, error) {
	var out []*models.NoticeReport
	for _, r := range f.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReportRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus, adminNotes *string) (*models.NoticeReport, error) {
	report, ok := f.reports[id]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "update report")
	}
	if !report.Status.CanTransitionTo(status) {
		return nil, repository.ErrInvalidTransition
	}
	report.Status = status
	return report, nil
}

func (f *fakeReportRepo) AttachNotice(ctx context.Context, reportID uuid.UUID, body string) (*models.Notice, error) {
	report, ok := f.reports[reportID]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "attach notice")
	}
	if report.NoticeID != nil {
		return nil, repository.ErrNoticeExists
	}
	if !report.Status.CanTransitionTo(models.ReportStatusProcessing) {
		return nil, repository.ErrInvalidTransition
	}
	notice := &models.Notice{ID: uuid.New(), ReportID: reportID, Body: body, Status: models.ReportStatusPending}
	f.notices[notice.ID] = notice
	report.NoticeID = &notice.ID
	report.Status = models.ReportStatusProcessing
	return notice, nil
}

func (f *fakeReportRepo) GetNotice(ctx context.Context, id uuid.UUID) (*models.Notice, error) {
	notice, ok := f.notices[id]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "get notice")
	}
	return notice, nil
}

func (f *fakeReportRepo) SetNoticeStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus, adminNotes *string) (*models.Notice, error) {
	notice, ok := f.notices[id]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "set notice status")
	}
	if !notice.Status.CanTransitionTo(status) {
		return nil, repository.ErrInvalidTransition
	}
	notice.Status = status
	report := f.reports[notice.ReportID]
	if report.Status.CanTransitionTo(status) {
		report.Status = status
	}
	return notice, nil
}

type fakeResultStore struct {
	results map[string]*models.Result
}

func (f *fakeResultStore) BeginScoring(ctx context.Context, videoID string) (int, bool, error) {
	return 0, false, nil
}

func (f *fakeResultStore) Upsert(ctx context.Context, result *models.Result) error { return nil }

func (f *fakeResultStore) Get(ctx context.Context, videoID string) (*models.Result, error) {
	res, ok := f.results[videoID]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "get result")
	}
	return res, nil
}

func (f *fakeResultStore) List(ctx context.Context, filters *repository.ResultFilters) ([]*models.Result, error) {
	return nil, nil
}

func newTestService() (*Service, *fakeReportRepo, *fakeResultStore) {
	reports := newFakeReportRepo()
	results := &fakeResultStore{results: map[string]*models.Result{}}
	svc := NewService(reports, results)
	svc.log = zap.NewNop()
	return svc, reports, results
}

func validInput() *SubmitInput {
	return &SubmitInput{
		VideoID:           "v1abc",
		VideoURL:          "https://video.example/watch?v=v1abc",
		InfringingContent: "A re-upload of the full film",
		OriginalContent:   "Original theatrical release",
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*SubmitInput)
		field  string
	}{
		{"missing video id", func(in *SubmitInput) { in.VideoID = " " }, "video_id"},
		{"missing video url", func(in *SubmitInput) { in.VideoURL = "" }, "video_url"},
		{"relative video url", func(in *SubmitInput) { in.VideoURL = "/watch?v=v1" }, "video_url"},
		{"missing infringing description", func(in *SubmitInput) { in.InfringingContent = "" }, "infringing_content_description"},
		{"missing original description", func(in *SubmitInput) { in.OriginalContent = "  " }, "original_content_description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _, _ := newTestService()
			in := validInput()
			tt.mutate(in)

			_, err := svc.Submit(context.Background(), "user-7", in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSubmitCreatesPendingReport(t *testing.T) {
	t.Parallel()

	svc, reports, _ := newTestService()

	report, err := svc.Submit(context.Background(), "user-7", validInput())
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusPending, report.Status)
	assert.Equal(t, "user-7", report.UserID)
	assert.Len(t, reports.reports, 1)
}

func TestBuildNoticeAttachesAndAdvancesReport(t *testing.T) {
	t.Parallel()

	svc, reports, results := newTestService()

	report, err := svc.Submit(context.Background(), "user-7", validInput())
	require.NoError(t, err)

	results.results["v1abc"] = &models.Result{
		VideoID:       "v1abc",
		Percentage:    72.5,
		Intervals:     []models.Interval{{Start: 1, End: 6}},
		TotalDuration: 120,
		Status:        models.ResultStatusCompleted,
	}

	notice, err := svc.BuildNotice(context.Background(), report.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusPending, notice.Status)
	assert.Contains(t, notice.Body, "72.50%")
	assert.Equal(t, models.ReportStatusProcessing, reports.reports[report.ID].Status)

	// A second build on the same report conflicts.
	_, err = svc.BuildNotice(context.Background(), report.ID)
	assert.ErrorIs(t, err, repository.ErrNoticeExists)
}

func TestBuildNoticeWithoutResult(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()

	report, err := svc.Submit(context.Background(), "user-7", validInput())
	require.NoError(t, err)

	notice, err := svc.BuildNotice(context.Background(), report.ID)
	require.NoError(t, err)
	assert.NotContains(t, notice.Body, "similarity analysis")
}

func TestCompletingNoticeCompletesReport(t *testing.T) {
	t.Parallel()

	svc, reports, _ := newTestService()

	report, err := svc.Submit(context.Background(), "user-7", validInput())
	require.NoError(t, err)

	notice, err := svc.BuildNotice(context.Background(), report.ID)
	require.NoError(t, err)

	_, err = svc.SetNoticeStatus(context.Background(), notice.ID, models.ReportStatusProcessing, nil)
	require.NoError(t, err)

	updated, err := svc.SetNoticeStatus(context.Background(), notice.ID, models.ReportStatusCompleted, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusCompleted, updated.Status)
	assert.Equal(t, models.ReportStatusCompleted, reports.reports[report.ID].Status)
}
