// Package pipeline contains the discovery filter and the survey-cycle
// orchestrator.
package pipeline

import (
	"strings"

	"github.com/securerights/copyright-detection-go/internal/catalog"
)

// RejectReason names the first filter rule a descriptor violated.
type RejectReason string

// Filter rejection reasons, in evaluation order.
const (
	RejectPermittedChannel RejectReason = "permitted-channel"
	RejectKnownChannel     RejectReason = "known-channel"
	RejectTooShort         RejectReason = "too-short"
	RejectTooLong          RejectReason = "too-long"
	RejectShortFormTag     RejectReason = "short-form-tag"
)

const shortFormTag = "#shorts"

// FilterContext is the immutable per-cycle snapshot the filter runs against.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type FilterContext struct {
	Protected   map[string]struct{}
	Known       map[string]struct{}
	MinDuration int
	MaxDuration int
}

// Filter applies the allow-list, known-channel, and heuristic rules to a
// descriptor. It returns false and the first matching reason when the
// descriptor is rejected. The filter performs no I/O.
func Filter(fc *FilterContext, v *catalog.VideoDescriptor) (bool, RejectReason) {
	if _, ok := fc.Protected[v.ChannelID]; ok {
		return false, RejectPermittedChannel
	}
	if _, ok := fc.Known[v.ChannelID]; ok {
		return false, RejectKnownChannel
	}
	if v.Duration < fc.MinDuration {
		return false, RejectTooShort
	}
	if v.Duration > fc.MaxDuration {
		return false, RejectTooLong
	}
	if containsShortFormTag(v.Title) || containsShortFormTag(v.Description) {
		return false, RejectShortFormTag
	}

	return true, ""
}

func containsShortFormTag(s string) bool {
	return strings.Contains(strings.ToLower(s), shortFormTag)
}
