package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/securerights/copyright-detection-go/internal/config"
	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/pkg/logger"
)

// HTTPClient implements Scorer over the scoring service's HTTP API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewHTTPClient creates a scorer client from configuration.
func NewHTTPClient(cfg *config.ScorerConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.Named("scorer"),
	}
}

type scoreRequest struct {
	VideoID         string `json:"video_id"`
	RegistryVersion string `json:"registry_version"`
}

type scoreResponse struct {
	Status        string            `json:"status"`
	Percentage    float64           `json:"copy_percentage"`
	Intervals     []models.Interval `json:"timestamps"`
	TotalDuration int               `json:"total_duration"`
	Error         string            `json:"error"`
	ErrorKind     string            `json:"error_kind"`
}

// Score issues one scoring call with a single transient retry. Failures
// are reported in the outcome, not as errors; only context cancellation
// and irrecoverable transport faults return an error.
func (c *HTTPClient) Score(ctx context.Context, videoID string, registryVersion string) (*Outcome, error) {
	outcome, err := c.score(ctx, videoID, registryVersion)
	if err == nil || errors.Is(err, context.Canceled) {
		return outcome, err
	}

	c.log.Warn("scorer call failed, retrying once",
		zap.String("video_id", videoID),
		zap.Error(err),
	)

	return c.score(ctx, videoID, registryVersion)
}

func (c *HTTPClient) score(ctx context.Context, videoID string, registryVersion string) (*Outcome, error) {
	body, err := json.Marshal(scoreRequest{VideoID: videoID, RegistryVersion: registryVersion})
	if err != nil {
		return nil, fmt.Errorf("marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			return &Outcome{FailureKind: models.FailureTimeout, FailureMsg: err.Error()}, nil
		}
		return nil, fmt.Errorf("score %s: %w", videoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &Outcome{
			FailureKind: models.FailureUnavailable,
			FailureMsg:  fmt.Sprintf("scorer returned %d", resp.StatusCode),
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return &Outcome{
			FailureKind: models.FailureInternal,
			FailureMsg:  fmt.Sprintf("scorer returned %d", resp.StatusCode),
		}, nil
	}

	var sr scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return &Outcome{
			FailureKind: models.FailureInternal,
			FailureMsg:  fmt.Sprintf("decode scorer response: %v", err),
		}, nil
	}

	if sr.Status != "completed" {
		return &Outcome{
			FailureKind: failureKind(sr.ErrorKind),
			FailureMsg:  sr.Error,
		}, nil
	}

	if sr.Percentage < 0 || sr.Percentage > 100 {
		return &Outcome{
			FailureKind: models.FailureInternal,
			FailureMsg:  fmt.Sprintf("percentage out of range: %v", sr.Percentage),
		}, nil
	}

	return &Outcome{
		Completed:     true,
		Percentage:    round2(sr.Percentage),
		Intervals:     sr.Intervals,
		TotalDuration: sr.TotalDuration,
	}, nil
}

func failureKind(kind string) models.FailureKind {
	switch models.FailureKind(kind) {
	case models.FailureUnavailable, models.FailureFormat, models.FailureTimeout, models.FailureInternal:
		return models.FailureKind(kind)
	default:
		return models.FailureInternal
	}
}

// round2 keeps percentages at two decimal places, matching what the
// scoring worker reports.
func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

var _ Scorer = (*HTTPClient)(nil)
