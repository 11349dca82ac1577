// Package identity adapts the external identity provider that validates
// bearer tokens for the HTTP surface.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/securerights/copyright-detection-go/internal/config"
)

// Role is the caller's access level.
type Role string

// Roles recognized by the API surface.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ErrInvalidToken is returned when the provider rejects a bearer token.
var ErrInvalidToken = errors.New("invalid identity token")

// Identity is a verified caller.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// Verifier validates bearer tokens.
type Verifier interface {
	// Verify resolves a bearer token to an identity, or ErrInvalidToken.
	Verify(ctx context.Context, token string) (*Identity, error)
}

// HTTPVerifier implements Verifier against the identity provider's HTTP
// API.
type HTTPVerifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPVerifier creates a verifier from configuration.
func NewHTTPVerifier(cfg *config.IdentityConfig) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/verify", nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}

	var ident Identity
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if ident.UserID == "" {
		return nil, ErrInvalidToken
	}
	if ident.Role != RoleAdmin {
		ident.Role = RoleUser
	}

	return &ident, nil
}

var _ Verifier = (*HTTPVerifier)(nil)
