package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/internal/db/repository"
)

// AllowlistHandler manages the protected-channel allow-list.
type AllowlistHandler struct {
	repo repository.ChannelListRepository
}

// NewAllowlistHandler creates a new AllowlistHandler.
func NewAllowlistHandler(repo repository.ChannelListRepository) *AllowlistHandler {
	return &AllowlistHandler{repo: repo}
}

// AddChannelRequest represents the request to allow-list a channel.
type AddChannelRequest struct {
	ChannelID string `json:"channel_id" binding:"required,max=100"`
	Reason    string `json:"reason" binding:"max=500"`
}

// List handles GET /allowlist.
func (h *AllowlistHandler) List(c *gin.Context) {
	channels, err := h.repo.ListProtected(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channels": channels,
		"count":    len(channels),
	})
}

// Add handles POST /allowlist.
func (h *AllowlistHandler) Add(c *gin.Context) {
	var req AddChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload: "+err.Error())
		return
	}

	channel := &models.ProtectedChannel{ChannelID: req.ChannelID, Reason: req.Reason}
	if err := h.repo.AddProtected(c.Request.Context(), channel); err != nil {
		respondRepositoryError(c, err, "")
		return
	}

	c.JSON(http.StatusCreated, channel)
}

// Remove handles DELETE /allowlist/{channel_id}.
func (h *AllowlistHandler) Remove(c *gin.Context) {
	channelID := c.Param("channel_id")

	if err := h.repo.RemoveProtected(c.Request.Context(), channelID); err != nil {
		respondRepositoryError(c, err, "channel not on the allow-list")
		return
	}

	c.Status(http.StatusNoContent)
}
