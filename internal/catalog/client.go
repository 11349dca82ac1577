package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/securerights/copyright-detection-go/internal/config"
	"github.com/securerights/copyright-detection-go/internal/timecode"
	"github.com/securerights/copyright-detection-go/pkg/logger"
)

const (
	retryBase     = 500 * time.Millisecond
	retryFactor   = 2
	retryCap      = 8 * time.Second
	retryAttempts = 4
	detailsBatch  = 50
)

// YouTubeClient implements Client against the YouTube Data API v3.
type YouTubeClient struct {
	service *youtube.Service
	limiter *rate.Limiter
	timeout time.Duration
	log     *zap.Logger
}

// NewYouTubeClient creates a catalog client from configuration.
func NewYouTubeClient(cfg *config.CatalogConfig) (*YouTubeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("catalog API key is required")
	}

	service, err := youtube.NewService(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &YouTubeClient{
		service: service,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		timeout: cfg.RequestTimeout,
		log:     logger.Named("catalog"),
	}, nil
}

func (c *YouTubeClient) Search(ctx context.Context, query string, publishedAfter time.Time, maxResults int64) ([]*VideoDescriptor, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	var descriptors []*VideoDescriptor
	err := c.withRetry(ctx, "search", func(callCtx context.Context) error {
		response, err := c.service.Search.List([]string{"snippet"}).
			Q(query).
			Type("video").
			Order("date").
			PublishedAfter(publishedAfter.UTC().Format(time.RFC3339)).
			MaxResults(maxResults).
			Context(callCtx).
			Do()
		if err != nil {
			return err
		}

		descriptors = descriptors[:0]
		for _, item := range response.Items {
			if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
				continue
			}
			publishedAt, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
			descriptors = append(descriptors, &VideoDescriptor{
				ID:           item.Id.VideoId,
				Title:        item.Snippet.Title,
				Description:  item.Snippet.Description,
				ChannelID:    item.Snippet.ChannelId,
				ChannelTitle: item.Snippet.ChannelTitle,
				PublishedAt:  publishedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return descriptors, nil
}

func (c *YouTubeClient) Details(ctx context.Context, ids []string) (map[string]int, error) {
	durations := make(map[string]int, len(ids))

	for start := 0; start < len(ids); start += detailsBatch {
		end := start + detailsBatch
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		err := c.withRetry(ctx, "details", func(callCtx context.Context) error {
			response, err := c.service.Videos.List([]string{"contentDetails"}).
				Id(batch...).
				Context(callCtx).
				Do()
			if err != nil {
				return err
			}

			for _, item := range response.Items {
				if item.ContentDetails == nil {
					durations[item.Id] = 0
					continue
				}
				durations[item.Id] = timecode.ParseISODuration(item.ContentDetails.Duration)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return durations, nil
}

// withRetry runs one catalog call with a per-attempt timeout, retrying
// transient failures with exponential backoff (500ms, factor 2, cap 8s,
// up to 4 attempts). Fatal failures surface immediately.
func (c *YouTubeClient) withRetry(ctx context.Context, op string, call func(context.Context) error) error {
	delay := retryBase
	var lastErr error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransientError{Err: err}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := call(callCtx)
		cancel()

		if err == nil {
			return nil
		}

		classified := classify(err)
		if IsFatal(classified) {
			return classified
		}
		lastErr = classified

		c.log.Warn("catalog call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		if attempt == retryAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &TransientError{Err: ctx.Err()}
		}

		delay *= retryFactor
		if delay > retryCap {
			delay = retryCap
		}
	}

	return lastErr
}

// classify splits catalog API failures into the transient/fatal taxonomy.
// Auth and quota problems are fatal; rate limits, server errors, and
// network faults are transient.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 401 || gerr.Code == 403:
			return &FatalError{Err: err}
		case gerr.Code == 429 || gerr.Code >= 500:
			return &TransientError{Err: err}
		default:
			return &FatalError{Err: err}
		}
	}

	return &TransientError{Err: err}
}
