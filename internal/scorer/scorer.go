// Package scorer adapts the external similarity-scoring service. The
// scoring algorithm itself is opaque to the pipeline; only the outcome
// contract matters here.
package scorer

import (
	"context"

	"github.com/securerights/copyright-detection-go/internal/db/models"
)

// Outcome is the result of one scoring call: either a completed score or a
// classified failure.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Outcome struct {
	Completed     bool
	Percentage    float64
	Intervals     []models.Interval
	TotalDuration int
	FailureKind   models.FailureKind
	FailureMsg    string
}

// Scorer scores one video against the protected-works registry. Scoring of
// distinct videos is independent and may run in parallel.
type Scorer interface {
	Score(ctx context.Context, videoID string, registryVersion string) (*Outcome, error)
}

// Copied derives the infringement verdict. The boolean is never stored
// independently of the percentage.
func Copied(percentage, threshold float64) bool {
	return percentage > threshold
}
