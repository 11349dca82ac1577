package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securerights/copyright-detection-go/internal/db/models"
)

func TestParseISODuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  int
	}{
		{"PT15S", 15},
		{"PT1M", 60},
		{"PT2M", 120},
		{"PT1H2M3S", 3723},
		{"PT1H", 3600},
		{"PT0S", 0},
		{"", 0},
		{"P1D", 0},
		{"PT", 0},
		{"PTXS", 0},
		{"15S", 0},
		{"PT1M90S", 150},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseISODuration(tt.input))
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0:00:00", FormatSeconds(0))
	assert.Equal(t, "0:00:15", FormatSeconds(15))
	assert.Equal(t, "0:02:00", FormatSeconds(120))
	assert.Equal(t, "1:02:03", FormatSeconds(3723))
	assert.Equal(t, "0:00:00", FormatSeconds(-5))
}

func TestNormalizeIntervals(t *testing.T) {
	t.Parallel()

	t.Run("merges touching intervals", func(t *testing.T) {
		t.Parallel()

		got, err := NormalizeIntervals([]models.Interval{{Start: 0, End: 5}, {Start: 5, End: 10}}, 120)
		require.NoError(t, err)
		assert.Equal(t, []models.Interval{{Start: 0, End: 10}}, got)
	})

	t.Run("merges overlapping intervals regardless of order", func(t *testing.T) {
		t.Parallel()

		got, err := NormalizeIntervals([]models.Interval{{Start: 3, End: 6}, {Start: 1, End: 4}}, 120)
		require.NoError(t, err)
		assert.Equal(t, []models.Interval{{Start: 1, End: 6}}, got)
	})

	t.Run("widens point interval to one second", func(t *testing.T) {
		t.Parallel()

		got, err := NormalizeIntervals([]models.Interval{{Start: 3, End: 3}}, 120)
		require.NoError(t, err)
		assert.Equal(t, []models.Interval{{Start: 3, End: 4}}, got)
	})

	t.Run("rejects inverted interval", func(t *testing.T) {
		t.Parallel()

		_, err := NormalizeIntervals([]models.Interval{{Start: 10, End: 5}}, 120)
		require.ErrorIs(t, err, ErrInvalidInterval)
	})

	t.Run("clamps to total duration", func(t *testing.T) {
		t.Parallel()

		got, err := NormalizeIntervals([]models.Interval{{Start: 100, End: 400}}, 120)
		require.NoError(t, err)
		assert.Equal(t, []models.Interval{{Start: 100, End: 120}}, got)
	})

	t.Run("keeps disjoint intervals sorted", func(t *testing.T) {
		t.Parallel()

		got, err := NormalizeIntervals([]models.Interval{{Start: 30, End: 40}, {Start: 1, End: 6}}, 120)
		require.NoError(t, err)
		assert.Equal(t, []models.Interval{{Start: 1, End: 6}, {Start: 30, End: 40}}, got)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		got, err := NormalizeIntervals(nil, 120)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
