// Package models contains the persisted entities of the detection pipeline.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus represents the scoring state of a video.
type ResultStatus string

// ResultStatus constants define the scoring lifecycle.
const (
	ResultStatusPending   ResultStatus = "pending"
	ResultStatusScoring   ResultStatus = "scoring"
	ResultStatusCompleted ResultStatus = "completed"
	ResultStatusFailed    ResultStatus = "failed"
)

// ReportStatus represents the state of a takedown report or its notice.
type ReportStatus string

// ReportStatus constants define the report/notice lifecycle.
const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusRejected   ReportStatus = "rejected"
)

// rank orders the monotone report transitions. Rejected is terminal and
// reachable from any non-terminal state.
func (s ReportStatus) rank() int {
	switch s {
	case ReportStatusPending:
		return 0
	case ReportStatusProcessing:
		return 1
	case ReportStatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next is a legal
// report/notice transition.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	if s == ReportStatusCompleted || s == ReportStatusRejected {
		return false
	}
	if next == ReportStatusRejected {
		return true
	}
	return next.rank() == s.rank()+1
}

// FailureKind classifies a scoring failure.
type FailureKind string

// FailureKind constants mirror the scorer service error taxonomy.
const (
	FailureUnavailable FailureKind = "unavailable"
	FailureFormat      FailureKind = "format-unsupported"
	FailureTimeout     FailureKind = "timeout"
	FailureInternal    FailureKind = "internal"
)

// SearchQuery is an operator-managed discovery phrase.
type SearchQuery struct {
	ID        uuid.UUID `json:"id"`
	Phrase    string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
}

// ProtectedChannel is an allow-listed channel, never treated as an infringer.
type ProtectedChannel struct {
	ChannelID string    `json:"channel_id"`
	Reason    string    `json:"reason"`
	AddedAt   time.Time `json:"added_at"`
}

// KnownChannel is a channel already surveyed in a prior cycle.
type KnownChannel struct {
	ChannelID string    `json:"channel_id"`
	AddedAt   time.Time `json:"added_at"`
}

// CandidateVideo is a discovered video awaiting similarity scoring.
// Candidates are insert-only; a candidate leaves the table when its
// result completes or its retry budget is exhausted.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type CandidateVideo struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	Query        string    `json:"query"`
	PublishedAt  time.Time `json:"published_at"`
	Duration     int       `json:"duration_seconds"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Interval is a closed [Start, End] range in whole seconds of video time.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result is the persisted scoring outcome for one video. The "copied"
// verdict is derived from Percentage against the configured threshold and
// is never stored; legacy stored flags are ignored on read.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Result struct {
	VideoID        string       `json:"video_id"`
	Percentage     float64      `json:"percentage"`
	Intervals      []Interval   `json:"infringing_intervals"`
	TotalDuration  int          `json:"total_duration"`
	Status         ResultStatus `json:"status"`
	FailureKind    *FailureKind `json:"failure_kind,omitempty"`
	FailureMessage *string      `json:"failure_message,omitempty"`
	Attempts       int          `json:"attempts"`
	ProcessedAt    *time.Time   `json:"processed_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Copied derives the infringement verdict at the given threshold.
func (r *Result) Copied(threshold float64) bool {
	return r.Percentage > threshold
}

// NoticeReport is a user-submitted takedown complaint.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type NoticeReport struct {
	ID                  uuid.UUID    `json:"id"`
	UserID              string       `json:"user_id"`
	VideoID             string       `json:"video_id"`
	VideoURL            string       `json:"video_url"`
	InfringingContent   string       `json:"infringing_content_description"`
	OriginalContent     string       `json:"original_content_description"`
	ProofReferences     []string     `json:"proof_documents"`
	Status              ReportStatus `json:"status"`
	AdminNotes          *string      `json:"admin_notes,omitempty"`
	NoticeID            *uuid.UUID   `json:"linked_notice_id,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// Notice is the generated takedown-letter artifact linked to a report.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Notice struct {
	ID        uuid.UUID    `json:"id"`
	ReportID  uuid.UUID    `json:"report_id"`
	Body      string       `json:"body"`
	Status    ReportStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CycleStatus represents the outcome of one survey cycle.
type CycleStatus string

// CycleStatus constants.
const (
	CycleStatusRunning   CycleStatus = "running"
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusPartial   CycleStatus = "partial"
	CycleStatusFailed    CycleStatus = "failed"
)

// CycleRecord captures the counters of one survey cycle.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type CycleRecord struct {
	ID                  uuid.UUID   `json:"id"`
	Status              CycleStatus `json:"status"`
	QueriesAttempted    int         `json:"queries_attempted"`
	QueriesSucceeded    int         `json:"queries_succeeded"`
	CandidatesDiscovered int        `json:"candidates_discovered"`
	CandidatesEnqueued  int         `json:"candidates_enqueued"`
	ScoringAttempts     int         `json:"scoring_attempts"`
	ScoringSuccesses    int         `json:"scoring_successes"`
	ScoringFailures     int         `json:"scoring_failures"`
	Error               *string     `json:"error,omitempty"`
	StartedAt           time.Time   `json:"started_at"`
	FinishedAt          *time.Time  `json:"finished_at,omitempty"`
}
