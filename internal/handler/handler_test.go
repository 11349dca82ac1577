package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/internal/db/repository"
	"github.com/securerights/copyright-detection-go/internal/identity"
	"github.com/securerights/copyright-detection-go/internal/notice"
)

// --- fakes -----------------------------------------------------------------

type fakeVerifier struct {
	identities map[string]*identity.Identity
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	ident, ok := f.identities[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return ident, nil
}

type fakeQueryRepo struct {
	mu      sync.Mutex
	queries map[uuid.UUID]*models.SearchQuery
}

func newFakeQueryRepo() *fakeQueryRepo {
	return &fakeQueryRepo{queries: map[uuid.UUID]*models.SearchQuery{}}
}

func (f *fakeQueryRepo) Create(ctx context.Context, q *models.SearchQuery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.queries {
		if existing.Phrase == q.Phrase {
			return db.WrapError(db.ErrDuplicateKey, "create query")
		}
	}
	q.ID = uuid.New()
	q.CreatedAt = time.Now()
	f.queries[q.ID] = q
	return nil
}

func (f *fakeQueryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.queries[id]; !ok {
		return db.WrapError(db.ErrNotFound, "delete query")
	}
	delete(f.queries, id)
	return nil
}

func (f *fakeQueryRepo) List(ctx context.Context) ([]*models.SearchQuery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.SearchQuery, 0, len(f.queries))
	for _, q := range f.queries {
		out = append(out, q)
	}
	return out, nil
}

type fakeChannelRepo struct {
	mu       sync.Mutex
	channels map[string]*models.ProtectedChannel
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{channels: map[string]*models.ProtectedChannel{}}
}

func (f *fakeChannelRepo) AddProtected(ctx context.Context, ch *models.ProtectedChannel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch.AddedAt = time.Now()
	f.channels[ch.ChannelID] = ch
	return nil
}

func (f *fakeChannelRepo) RemoveProtected(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[id]; !ok {
		return db.WrapError(db.ErrNotFound, "remove protected channel")
	}
	delete(f.channels, id)
	return nil
}

func (f *fakeChannelRepo) ListProtected(ctx context.Context) ([]*models.ProtectedChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ProtectedChannel, 0, len(f.channels))
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (f *fakeChannelRepo) MarkKnown(ctx context.Context, id string) error { return nil }

func (f *fakeChannelRepo) Snapshot(ctx context.Context) (map[string]struct{}, map[string]struct{}, error) {
	return map[string]struct{}{}, map[string]struct{}{}, nil
}

type fakeCandidateRepo struct {
	candidates []*models.CandidateVideo
}

func (f *fakeCandidateRepo) Enqueue(ctx context.Context, c *models.CandidateVideo) (bool, error) {
	f.candidates = append(f.candidates, c)
	return true, nil
}

func (f *fakeCandidateRepo) ListPending(ctx context.Context) ([]*models.CandidateVideo, error) {
	return f.candidates, nil
}

func (f *fakeCandidateRepo) List(ctx context.Context) ([]*models.CandidateVideo, error) {
	return f.candidates, nil
}

func (f *fakeCandidateRepo) Remove(ctx context.Context, videoID string) error { return nil }

type fakeResultRepo struct {
	results map[string]*models.Result
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{results: map[string]*models.Result{}}
}

func (f *fakeResultRepo) BeginScoring(ctx context.Context, videoID string) (int, bool, error) {
	return 0, false, nil
}

func (f *fakeResultRepo) Upsert(ctx context.Context, res *models.Result) error {
	f.results[res.VideoID] = res
	return nil
}

func (f *fakeResultRepo) Get(ctx context.Context, videoID string) (*models.Result, error) {
	res, ok := f.results[videoID]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "get result")
	}
	return res, nil
}

func (f *fakeResultRepo) List(ctx context.Context, filters *repository.ResultFilters) ([]*models.Result, error) {
	var out []*models.Result
	for _, res := range f.results {
		if filters != nil && filters.Status != "" && res.Status != filters.Status {
			continue
		}
		if filters != nil && filters.MinPercentage != nil && res.Percentage <= *filters.MinPercentage {
			continue
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VideoID < out[j].VideoID })
	return out, nil
}

type fakeCycleRepo struct {
	records []*models.CycleRecord
}

func (f *fakeCycleRepo) Create(ctx context.Context, record *models.CycleRecord) error { return nil }

func (f *fakeCycleRepo) Finish(ctx context.Context, record *models.CycleRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeCycleRepo) List(ctx context.Context, limit int) ([]*models.CycleRecord, error) {
	return f.records, nil
}

type fakeCycleRunner struct {
	record *models.CycleRecord
	err    error
}

func (f *fakeCycleRunner) RunCycle(ctx context.Context) (*models.CycleRecord, error) {
	return f.record, f.err
}

type fakeReportRepo struct {
	mu      sync.Mutex
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
	f.mu.Lock()
	defer f.mu.Unlock()
	report.ID = uuid.New()
	report.Status = models.ReportStatusPending
	report.CreatedAt = time.Now()
	f.reports[report.ID] = report
	return nil
}

func (f *fakeReportRepo) Get(ctx context.Context, id uuid.UUID) (*models.NoticeReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "get report")
	}
	return report, nil
}

func (f *fakeReportRepo) ListByUser(ctx context.Context, userID string) ([]*models.NoticeReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.NoticeReport
	for _, r := range f.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReportRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus, adminNotes *string) (*models.NoticeReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "update report")
	}
	if !report.Status.CanTransitionTo(status) {
		return nil, repository.ErrInvalidTransition
	}
	report.Status = status
	if adminNotes != nil {
		report.AdminNotes = adminNotes
	}
	if report.NoticeID != nil && (status == models.ReportStatusCompleted || status == models.ReportStatusRejected) {
		f.notices[*report.NoticeID].Status = status
	}
	return report, nil
}

func (f *fakeReportRepo) AttachNotice(ctx context.Context, reportID uuid.UUID, body string) (*models.Notice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[reportID]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "attach notice")
	}
	if report.NoticeID != nil {
		return nil, repository.ErrNoticeExists
	}
	n := &models.Notice{ID: uuid.New(), ReportID: reportID, Body: body, Status: models.ReportStatusPending}
	f.notices[n.ID] = n
	report.NoticeID = &n.ID
	report.Status = models.ReportStatusProcessing
	return n, nil
}

func (f *fakeReportRepo) GetNotice(ctx context.Context, id uuid.UUID) (*models.Notice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notices[id]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "get notice")
	}
	return n, nil
}

func (f *fakeReportRepo) SetNoticeStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus, adminNotes *string) (*models.Notice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notices[id]
	if !ok {
		return nil, db.WrapError(db.ErrNotFound, "set notice status")
	}
	if !n.Status.CanTransitionTo(status) {
		return nil, repository.ErrInvalidTransition
	}
	n.Status = status
	report := f.reports[n.ReportID]
	if report.Status.CanTransitionTo(status) {
		report.Status = status
	}
	return n, nil
}

type fakeRenderer struct {
	pdf []byte
	err error
}

func (f *fakeRenderer) Render(ctx context.Context, body string) ([]byte, error) {
	return f.pdf, f.err
}

// --- fixture ---------------------------------------------------------------

type fixture struct {
	engine     *gin.Engine
	queries    *fakeQueryRepo
	channels   *fakeChannelRepo
	candidates *fakeCandidateRepo
	results    *fakeResultRepo
	cycles     *fakeCycleRepo
	runner     *fakeCycleRunner
	reports    *fakeReportRepo
	renderer   *fakeRenderer
}

const (
	userToken  = "user-tok"
	otherToken = "other-tok"
	adminToken = "admin-tok"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		queries:    newFakeQueryRepo(),
		channels:   newFakeChannelRepo(),
		candidates: &fakeCandidateRepo{},
		results:    newFakeResultRepo(),
		cycles:     &fakeCycleRepo{},
		runner:     &fakeCycleRunner{record: &models.CycleRecord{Status: models.CycleStatusCompleted}},
		reports:    newFakeReportRepo(),
		renderer:   &fakeRenderer{pdf: []byte("%PDF-1.4")},
	}

	verifier := &fakeVerifier{identities: map[string]*identity.Identity{
		userToken:  {UserID: "user-7", Role: identity.RoleUser},
		otherToken: {UserID: "user-9", Role: identity.RoleUser},
		adminToken: {UserID: "admin-1", Role: identity.RoleAdmin},
	}}

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_reports_total"})
	noticeCounter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_notices_total"})
	reg.MustRegister(counter, noticeCounter)

	service := notice.NewService(f.reports, f.results)

	f.engine = NewRouter(Routers{
		Health:   nil,
		Queries:  NewQueryHandler(f.queries),
		Allow:    NewAllowlistHandler(f.channels),
		Pipeline: NewPipelineHandler(f.runner, f.candidates, f.results, f.cycles, 40),
		Reports:  NewReportHandler(service, f.renderer, counter, noticeCounter),
		Verifier: verifier,
	})

	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func multipartReport(t *testing.T, fields map[string]string, proofFiles []string) (io.Reader, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range proofFiles {
		fw, err := w.CreateFormFile("proof_documents", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("proof"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}
