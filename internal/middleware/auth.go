// Package middleware contains the gin middleware of the HTTP surface.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/securerights/copyright-detection-go/internal/identity"
	"github.com/securerights/copyright-detection-go/pkg/logger"
)

const (
	bearerPrefix = "Bearer "

	// IdentityKey is the gin context key carrying the verified identity.
	IdentityKey = "identity"

	// retryAfterSeconds is the Retry-After hint sent with 503 responses
	// while the identity provider is unreachable.
	retryAfterSeconds = "30"
)

type errorBody struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

// Auth validates the bearer token on every request and stores the
// resolved identity in the request context.
func Auth(verifier identity.Verifier) gin.HandlerFunc {
	log := logger.Named("auth")

	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}

		ident, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				abort(c, http.StatusUnauthorized, "Unauthorized", "invalid bearer token")
				return
			}
			log.Error("identity provider unavailable", zap.Error(err))
			c.Header("Retry-After", retryAfterSeconds)
			abort(c, http.StatusServiceUnavailable, "Service Unavailable", "identity provider unavailable")
			return
		}

		c.Set(IdentityKey, ident)
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. It must run after
// Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := CallerIdentity(c)
		if ident == nil {
			abort(c, http.StatusUnauthorized, "Unauthorized", "missing identity")
			return
		}
		if ident.Role != identity.RoleAdmin {
			abort(c, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

// CallerIdentity returns the verified identity stored by Auth, or nil.
func CallerIdentity(c *gin.Context) *identity.Identity {
	val, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	ident, ok := val.(*identity.Identity)
	if !ok {
		return nil
	}
	return ident
}

func extractBearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimPrefix(header, bearerPrefix)
	}
	return ""
}

func abort(c *gin.Context, status int, errText, message string) {
	c.AbortWithStatusJSON(status, errorBody{
		Timestamp: time.Now(),
		Status:    status,
		Error:     errText,
		Message:   message,
		Path:      c.Request.URL.Path,
	})
}
