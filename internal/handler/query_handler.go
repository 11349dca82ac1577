package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/internal/db/repository"
)

// QueryHandler manages the discovery search queries.
type QueryHandler struct {
	repo repository.QueryRepository
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(repo repository.QueryRepository) *QueryHandler {
	return &QueryHandler{repo: repo}
}

// CreateQueryRequest represents the request to add a search query.
type CreateQueryRequest struct {
	Query string `json:"query" binding:"required,max=200"`
}

// List handles GET /queries.
func (h *QueryHandler) List(c *gin.Context) {
	queries, err := h.repo.List(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queries": queries,
		"count":   len(queries),
	})
}

// Create handles POST /queries.
func (h *QueryHandler) Create(c *gin.Context) {
	var req CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload: "+err.Error())
		return
	}

	query := &models.SearchQuery{Phrase: req.Query}
	if err := h.repo.Create(c.Request.Context(), query); err != nil {
		respondRepositoryError(c, err, "")
		return
	}

	c.JSON(http.StatusCreated, query)
}

// Delete handles DELETE /queries/{id}.
func (h *QueryHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "query id must be a valid UUID")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		respondRepositoryError(c, err, "query not found")
		return
	}

	c.Status(http.StatusNoContent)
}
