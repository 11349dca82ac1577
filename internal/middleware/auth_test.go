package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/securerights/copyright-detection-go/internal/identity"
)

type fakeVerifier struct {
	identities map[string]*identity.Identity
	err        error
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	ident, ok := f.identities[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return ident, nil
}

func newAuthRouter(verifier identity.Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(verifier))

	r.GET("/whoami", func(c *gin.Context) {
		ident := CallerIdentity(c)
		c.JSON(http.StatusOK, ident)
	})

	admin := r.Group("", RequireAdmin())
	admin.POST("/cycle", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	return r
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRejectsMissingToken(t *testing.T) {
	t.Parallel()

	r := newAuthRouter(&fakeVerifier{})

	w := doRequest(r, http.MethodGet, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing bearer token")
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	t.Parallel()

	r := newAuthRouter(&fakeVerifier{identities: map[string]*identity.Identity{}})

	w := doRequest(r, http.MethodGet, "/whoami", "nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthPassesIdentityThrough(t *testing.T) {
	t.Parallel()

	r := newAuthRouter(&fakeVerifier{identities: map[string]*identity.Identity{
		"tok": {UserID: "user-7", Role: identity.RoleUser},
	}})

	w := doRequest(r, http.MethodGet, "/whoami", "tok")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-7")
}

func TestAuthProviderOutageReturns503(t *testing.T) {
	t.Parallel()

	r := newAuthRouter(&fakeVerifier{err: errors.New("connection refused")})

	w := doRequest(r, http.MethodGet, "/whoami", "tok")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	r := newAuthRouter(&fakeVerifier{identities: map[string]*identity.Identity{
		"user-tok":  {UserID: "user-7", Role: identity.RoleUser},
		"admin-tok": {UserID: "admin-1", Role: identity.RoleAdmin},
	}})

	w := doRequest(r, http.MethodPost, "/cycle", "user-tok")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, http.MethodPost, "/cycle", "admin-tok")
	assert.Equal(t, http.StatusAccepted, w.Code)
}
