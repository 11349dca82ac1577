package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securerights/copyright-detection-go/internal/db/models"
)

func TestResultCompletedEventRoundTrip(t *testing.T) {
	t.Parallel()

	processedAt := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	event := ResultCompletedEvent{
		VideoID:       "v1abc",
		Percentage:    72.5,
		Copied:        true,
		Intervals:     []models.Interval{{Start: 10, End: 30}, {Start: 50, End: 60}},
		TotalDuration: 120,
		ProcessedAt:   &processedAt,
	}

	body, err := json.Marshal(event)
	require.NoError(t, err)

	assert.Contains(t, string(body), `"video_id":"v1abc"`)
	assert.Contains(t, string(body), `"infringing_intervals"`)
	assert.Contains(t, string(body), `"copied":true`)

	var decoded ResultCompletedEvent
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, event, decoded)
}

func TestPublishWithoutConnectionFails(t *testing.T) {
	t.Parallel()

	p := &Publisher{}

	err := p.PublishResultCompleted(context.Background(), &models.Result{VideoID: "v1"}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel is not initialized")
}
