package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/internal/identity"
	"github.com/securerights/copyright-detection-go/internal/middleware"
	"github.com/securerights/copyright-detection-go/internal/notice"
	"github.com/securerights/copyright-detection-go/internal/render"
)

// ReportHandler exposes takedown report submission and the notice
// lifecycle.
type ReportHandler struct {
	service  *notice.Service
	renderer render.Renderer

	reportsSubmitted prometheus.Counter
	noticesBuilt     prometheus.Counter
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(service *notice.Service, renderer render.Renderer, reportsSubmitted, noticesBuilt prometheus.Counter) *ReportHandler {
	return &ReportHandler{
		service:          service,
		renderer:         renderer,
		reportsSubmitted: reportsSubmitted,
		noticesBuilt:     noticesBuilt,
	}
}

// StatusUpdateRequest represents an admin status change.
type StatusUpdateRequest struct {
	Status     string  `json:"status" binding:"required"`
	AdminNotes *string `json:"admin_notes"`
}

func parseReportStatus(raw string) (models.ReportStatus, bool) {
	switch models.ReportStatus(raw) {
	case models.ReportStatusPending, models.ReportStatusProcessing,
		models.ReportStatusCompleted, models.ReportStatusRejected:
		return models.ReportStatus(raw), true
	default:
		return "", false
	}
}

// Submit handles POST /reports. The body is multipart form data; proof
// documents arrive as file parts and are stored as opaque references.
func (h *ReportHandler) Submit(c *gin.Context) {
	ident := middleware.CallerIdentity(c)
	if ident == nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "expected multipart form data: "+err.Error())
		return
	}

	input := &notice.SubmitInput{
		VideoID:           formValue(form.Value, "video_id"),
		VideoURL:          formValue(form.Value, "video_url"),
		InfringingContent: formValue(form.Value, "infringing_content_description"),
		OriginalContent:   formValue(form.Value, "original_content_description"),
	}
	for _, file := range form.File["proof_documents"] {
		input.ProofReferences = append(input.ProofReferences, file.Filename)
	}

	report, err := h.service.Submit(c.Request.Context(), ident.UserID, input)
	if err != nil {
		respondRepositoryError(c, err, "")
		return
	}

	if h.reportsSubmitted != nil {
		h.reportsSubmitted.Inc()
	}

	c.JSON(http.StatusCreated, report)
}

// List handles GET /reports, scoped to the caller.
func (h *ReportHandler) List(c *gin.Context) {
	ident := middleware.CallerIdentity(c)
	if ident == nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}

	reports, err := h.service.ListReports(c.Request.Context(), ident.UserID)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"count":   len(reports),
	})
}

// ownsOrAdmin reports whether the caller may access a resource owned by
// ownerID. Reports and notices are visible to their submitter and to
// admins only; everyone else sees a 404, not a 403, so ids do not leak.
func ownsOrAdmin(c *gin.Context, ownerID string) bool {
	ident := middleware.CallerIdentity(c)
	if ident == nil {
		return false
	}
	return ident.Role == identity.RoleAdmin || ident.UserID == ownerID
}

// Get handles GET /reports/{id}.
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), id)
	if err != nil {
		respondRepositoryError(c, err, "report not found")
		return
	}

	if !ownsOrAdmin(c, report.UserID) {
		notFound(c, "report not found")
		return
	}

	c.JSON(http.StatusOK, report)
}

// BuildNotice handles POST /reports/{id}/notice.
func (h *ReportHandler) BuildNotice(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), id)
	if err != nil {
		respondRepositoryError(c, err, "report not found")
		return
	}
	if !ownsOrAdmin(c, report.UserID) {
		notFound(c, "report not found")
		return
	}

	built, err := h.service.BuildNotice(c.Request.Context(), id)
	if err != nil {
		respondRepositoryError(c, err, "report not found")
		return
	}

	if h.noticesBuilt != nil {
		h.noticesBuilt.Inc()
	}

	c.JSON(http.StatusCreated, built)
}

// UpdateStatus handles PATCH /reports/{id}/status.
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload: "+err.Error())
		return
	}

	status, ok := parseReportStatus(req.Status)
	if !ok {
		badRequest(c, "invalid status value (valid: pending, processing, completed, rejected)")
		return
	}

	report, err := h.service.SetReportStatus(c.Request.Context(), id, status, req.AdminNotes)
	if err != nil {
		respondRepositoryError(c, err, "report not found")
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetNotice handles GET /notices/{id}.
func (h *ReportHandler) GetNotice(c *gin.Context) {
	id, ok := h.noticeID(c)
	if !ok {
		return
	}

	n, ok := h.authorizedNotice(c, id)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, n)
}

// authorizedNotice loads a notice and verifies the caller may read it via
// the parent report's owner.
func (h *ReportHandler) authorizedNotice(c *gin.Context, id uuid.UUID) (*models.Notice, bool) {
	n, err := h.service.GetNotice(c.Request.Context(), id)
	if err != nil {
		respondRepositoryError(c, err, "notice not found")
		return nil, false
	}

	report, err := h.service.GetReport(c.Request.Context(), n.ReportID)
	if err != nil {
		respondRepositoryError(c, err, "notice not found")
		return nil, false
	}
	if !ownsOrAdmin(c, report.UserID) {
		notFound(c, "notice not found")
		return nil, false
	}

	return n, true
}

// UpdateNoticeStatus handles PATCH /notices/{id}/status.
func (h *ReportHandler) UpdateNoticeStatus(c *gin.Context) {
	id, ok := h.noticeID(c)
	if !ok {
		return
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload: "+err.Error())
		return
	}

	status, ok := parseReportStatus(req.Status)
	if !ok {
		badRequest(c, "invalid status value (valid: pending, processing, completed, rejected)")
		return
	}

	n, err := h.service.SetNoticeStatus(c.Request.Context(), id, status, req.AdminNotes)
	if err != nil {
		respondRepositoryError(c, err, "notice not found")
		return
	}

	c.JSON(http.StatusOK, n)
}

// RenderNoticePDF handles GET /notices/{id}/pdf.
func (h *ReportHandler) RenderNoticePDF(c *gin.Context) {
	id, ok := h.noticeID(c)
	if !ok {
		return
	}

	n, ok := h.authorizedNotice(c, id)
	if !ok {
		return
	}

	pdf, err := h.renderer.Render(c.Request.Context(), n.Body)
	if err != nil {
		respondError(c, http.StatusBadGateway, "Bad Gateway", "notice renderer unavailable")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="notice-`+n.ID.String()+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *ReportHandler) reportID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "report id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ReportHandler) noticeID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "notice id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func formValue(values map[string][]string, key string) string {
	if v, ok := values[key]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}
