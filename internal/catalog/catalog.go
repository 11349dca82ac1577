// Package catalog adapts the external video catalog API for the discovery
// stage of the pipeline.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// VideoDescriptor is the catalog's view of one video.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoDescriptor struct {
	ID           string
	Title        string
	Description  string
	ChannelID    string
	ChannelTitle string
	PublishedAt  time.Time
	// Duration in seconds, filled by Details; zero until enriched.
	Duration int
}

// Client resolves text queries to bounded lists of video descriptors.
type Client interface {
	// Search returns descriptors for the query ordered most-recent first,
	// truncated at maxResults.
	Search(ctx context.Context, query string, publishedAfter time.Time, maxResults int64) ([]*VideoDescriptor, error)

	// Details returns the duration in integer seconds for each id. Unknown
	// or malformed durations map to 0.
	Details(ctx context.Context, ids []string) (map[string]int, error)
}

// TransientError marks a recoverable catalog failure (network, rate limit,
// 5xx). Transient errors are retried with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient catalog error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks an unrecoverable catalog failure (bad credentials,
// quota exhausted). Fatal errors abort the cycle before scoring.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal catalog error: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a recoverable catalog failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err is an unrecoverable catalog failure.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
