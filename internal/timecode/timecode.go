// Package timecode converts between the external duration and timestamp
// formats and the integer seconds used everywhere inside the pipeline.
package timecode

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/securerights/copyright-detection-go/internal/db/models"
)

// ErrInvalidInterval is returned when an interval ends before it starts.
var ErrInvalidInterval = errors.New("interval end precedes start")

// ParseISODuration converts an ISO 8601 duration such as "PT1H2M3S" to
// integer seconds. Unknown or malformed durations map to 0 so that a bad
// catalog record never aborts discovery; the filter stage rejects
// zero-duration descriptors as too short.
func ParseISODuration(duration string) int {
	rest, ok := strings.CutPrefix(duration, "PT")
	if !ok || rest == "" {
		return 0
	}

	total := 0
	for _, unit := range []struct {
		suffix  byte
		seconds int
	}{{'H', 3600}, {'M', 60}, {'S', 1}} {
		idx := strings.IndexByte(rest, unit.suffix)
		if idx == -1 {
			continue
		}
		n, err := strconv.Atoi(rest[:idx])
		if err != nil || n < 0 {
			return 0
		}
		total += n * unit.seconds
		rest = rest[idx+1:]
	}

	if rest != "" {
		return 0
	}
	return total
}

// FormatSeconds renders seconds as h:mm:ss for notice bodies and display.
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// FormatInterval renders an interval as "h:mm:ss - h:mm:ss".
func FormatInterval(iv models.Interval) string {
	return FormatSeconds(iv.Start) + " - " + FormatSeconds(iv.End)
}

// NormalizeIntervals sorts intervals by start, merges overlapping or
// touching ranges, widens single-point intervals to one second, and clamps
// everything to [0, totalDuration]. An interval whose end precedes its
// start is rejected.
func NormalizeIntervals(intervals []models.Interval, totalDuration int) ([]models.Interval, error) {
	if len(intervals) == 0 {
		return nil, nil
	}

	normalized := make([]models.Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.End < iv.Start {
			return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidInterval, iv.Start, iv.End)
		}
		if iv.Start == iv.End {
			// A single matched second still denotes real duration.
			iv.End = iv.Start + 1
		}
		if iv.Start < 0 {
			iv.Start = 0
		}
		if totalDuration > 0 && iv.End > totalDuration {
			iv.End = totalDuration
		}
		if iv.End <= iv.Start {
			continue
		}
		normalized = append(normalized, iv)
	}

	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i].Start < normalized[j].Start
	})

	merged := normalized[:0]
	for _, iv := range normalized {
		if len(merged) > 0 && iv.Start <= merged[len(merged)-1].End {
			if iv.End > merged[len(merged)-1].End {
				merged[len(merged)-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}

	if len(merged) == 0 {
		return nil, nil
	}
	return merged, nil
}
