// Package render adapts the notice PDF rendering collaborator.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/securerights/copyright-detection-go/internal/config"
)

// Renderer turns a notice body into a PDF document.
type Renderer interface {
	Render(ctx context.Context, body string) ([]byte, error)
}

// HTTPRenderer implements Renderer against the renderer's HTTP API.
type HTTPRenderer struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPRenderer creates a renderer from configuration.
func NewHTTPRenderer(cfg *config.PDFConfig) *HTTPRenderer {
	return &HTTPRenderer{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type renderRequest struct {
	Body string `json:"body"`
}

func (r *HTTPRenderer) Render(ctx context.Context, body string) ([]byte, error) {
	payload, err := json.Marshal(renderRequest{Body: body})
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render notice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer returned %d", resp.StatusCode)
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rendered document: %w", err)
	}

	return pdf, nil
}

var _ Renderer = (*HTTPRenderer)(nil)
