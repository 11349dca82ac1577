// Package handler contains the gin handlers of the HTTP facade.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/repository"
	"github.com/securerights/copyright-detection-go/internal/notice"
	"github.com/securerights/copyright-detection-go/pkg/logger"
)

// ErrorResponse represents an error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

func respondError(c *gin.Context, status int, errText, message string) {
	c.JSON(status, ErrorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Error:     errText,
		Message:   message,
		Path:      c.Request.URL.Path,
	})
}

func badRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "Bad Request", message)
}

func notFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, "Not Found", message)
}

func conflict(c *gin.Context, message string) {
	respondError(c, http.StatusConflict, "Conflict", message)
}

// internalError logs the error with a correlation id and surfaces only the
// id to the caller.
func internalError(c *gin.Context, err error) {
	correlationID := uuid.NewString()
	logger.Named("handler").Error("internal error",
		zap.String("correlation_id", correlationID),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	respondError(c, http.StatusInternalServerError, "Internal Server Error",
		"an unexpected error occurred (correlation id "+correlationID+")")
}

// respondRepositoryError translates the storage error taxonomy to HTTP.
func respondRepositoryError(c *gin.Context, err error, notFoundMsg string) {
	var verr *notice.ValidationError

	switch {
	case db.IsNotFound(err):
		notFound(c, notFoundMsg)
	case db.IsDuplicateKey(err):
		conflict(c, "resource already exists")
	case errors.Is(err, repository.ErrInvalidTransition):
		badRequest(c, err.Error())
	case errors.Is(err, repository.ErrNoticeExists):
		conflict(c, "report already has a notice")
	case errors.As(err, &verr):
		badRequest(c, verr.Error())
	default:
		internalError(c, err)
	}
}
