package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/securerights/copyright-detection-go/internal/catalog"
	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/internal/db/repository"
	"github.com/securerights/copyright-detection-go/internal/pipeline"
)

// CycleRunner triggers one survey cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*models.CycleRecord, error)
}

// PipelineHandler exposes the survey cycle, candidates, and results.
type PipelineHandler struct {
	orchestrator CycleRunner
	candidates   repository.CandidateRepository
	results      repository.ResultRepository
	cycles       repository.CycleRepository
	threshold    float64
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(
	orchestrator CycleRunner,
	candidates repository.CandidateRepository,
	results repository.ResultRepository,
	cycles repository.CycleRepository,
	threshold float64,
) *PipelineHandler {
	return &PipelineHandler{
		orchestrator: orchestrator,
		candidates:   candidates,
		results:      results,
		cycles:       cycles,
		threshold:    threshold,
	}
}

// resultView decorates a stored result with the derived verdict.
type resultView struct {
	*models.Result
	Copied bool `json:"copied"`
}

func (h *PipelineHandler) view(res *models.Result) resultView {
	return resultView{Result: res, Copied: res.Copied(h.threshold)}
}

// TriggerCycle handles POST /cycle. The cycle runs synchronously; a
// partial cycle still returns 200 with its per-query counters.
func (h *PipelineHandler) TriggerCycle(c *gin.Context) {
	record, err := h.orchestrator.RunCycle(c.Request.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrCycleRunning) {
			conflict(c, "a survey cycle is already running")
			return
		}
		// A fatal catalog failure is an upstream problem; the record
		// carries the counters gathered before the abort. Everything
		// else is internal.
		if catalog.IsFatal(err) {
			c.JSON(http.StatusBadGateway, gin.H{
				"cycle": record,
				"error": err.Error(),
			})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cycle": record})
}

// ListCycles handles GET /cycles.
func (h *PipelineHandler) ListCycles(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.cycles.List(c.Request.Context(), limit)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cycles": records,
		"count":  len(records),
	})
}

// ListCandidates handles GET /candidates.
func (h *PipelineHandler) ListCandidates(c *gin.Context) {
	candidates, err := h.candidates.List(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

// ListResults handles GET /results with optional status and
// min_percentage filters.
func (h *PipelineHandler) ListResults(c *gin.Context) {
	filters := &repository.ResultFilters{}

	if status := c.Query("status"); status != "" {
		switch models.ResultStatus(status) {
		case models.ResultStatusPending, models.ResultStatusScoring,
			models.ResultStatusCompleted, models.ResultStatusFailed:
			filters.Status = models.ResultStatus(status)
		default:
			badRequest(c, "invalid status value (valid: pending, scoring, completed, failed)")
			return
		}
	}

	if raw := c.Query("min_percentage"); raw != "" {
		min, err := strconv.ParseFloat(raw, 64)
		if err != nil || min < 0 || min > 100 {
			badRequest(c, "min_percentage must be a number between 0 and 100")
			return
		}
		filters.MinPercentage = &min
	}

	results, err := h.results.List(c.Request.Context(), filters)
	if err != nil {
		internalError(c, err)
		return
	}

	views := make([]resultView, 0, len(results))
	for _, res := range results {
		views = append(views, h.view(res))
	}

	c.JSON(http.StatusOK, gin.H{
		"results": views,
		"count":   len(views),
	})
}

// GetResult handles GET /results/{video_id}.
func (h *PipelineHandler) GetResult(c *gin.Context) {
	videoID := c.Param("video_id")

	res, err := h.results.Get(c.Request.Context(), videoID)
	if err != nil {
		respondRepositoryError(c, err, "no result for video "+videoID)
		return
	}

	c.JSON(http.StatusOK, h.view(res))
}
