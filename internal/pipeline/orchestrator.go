package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/securerights/copyright-detection-go/internal/catalog"
	"github.com/securerights/copyright-detection-go/internal/config"
	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/internal/db/repository"
	"github.com/securerights/copyright-detection-go/internal/scorer"
	"github.com/securerights/copyright-detection-go/internal/timecode"
	"github.com/securerights/copyright-detection-go/pkg/logger"
)

// ErrCycleRunning is returned when a survey cycle is already in flight.
var ErrCycleRunning = errors.New("a survey cycle is already running")

// ResultPublisher announces completed scoring results to downstream
// consumers. Publishing is best-effort; a broker outage never fails a cycle.
type ResultPublisher interface {
	PublishResultCompleted(ctx context.Context, result *models.Result, copied bool) error
}

// CycleObserver receives the counters of a finished cycle.
type CycleObserver interface {
	ObserveCycle(record *models.CycleRecord)
}

// Orchestrator drives survey cycles: discover candidates under every
// configured query, filter them, enqueue survivors, and drain the pending
// set through the scorer.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Orchestrator struct {
	cfg             config.PipelineConfig
	registryVersion string

	queries    repository.QueryRepository
	channels   repository.ChannelListRepository
	candidates repository.CandidateRepository
	results    repository.ResultRepository
	cycles     repository.CycleRepository

	catalog catalog.Client
	scorer  scorer.Scorer
	leases  LeaseStore

	publisher ResultPublisher
	observer  CycleObserver

	running atomic.Bool
	log     *zap.Logger
}

// Deps bundles the orchestrator's collaborators.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Deps struct {
	Queries    repository.QueryRepository
	Channels   repository.ChannelListRepository
	Candidates repository.CandidateRepository
	Results    repository.ResultRepository
	Cycles     repository.CycleRepository
	Catalog    catalog.Client
	Scorer     scorer.Scorer
	Leases     LeaseStore
	Publisher  ResultPublisher
	Observer   CycleObserver
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg config.PipelineConfig, registryVersion string, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:             cfg,
		registryVersion: registryVersion,
		queries:         deps.Queries,
		channels:        deps.Channels,
		candidates:      deps.Candidates,
		results:         deps.Results,
		cycles:          deps.Cycles,
		catalog:         deps.Catalog,
		scorer:          deps.Scorer,
		leases:          deps.Leases,
		publisher:       deps.Publisher,
		observer:        deps.Observer,
		log:             logger.Named("orchestrator"),
	}
}

// Running reports whether a cycle is currently in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// counters collects cycle statistics across workers.
type counters struct {
	mu                   sync.Mutex
	queriesAttempted     int
	queriesSucceeded     int
	candidatesDiscovered int
	candidatesEnqueued   int
	scoringAttempts      int
	scoringSuccesses     int
	scoringFailures      int
}

func (c *counters) add(fn func(*counters)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// RunCycle executes one survey cycle. At most one cycle runs per process;
// a concurrent invocation fails with ErrCycleRunning. Re-running a cycle
// with no new data produces no new candidates and no status regressions.
func (o *Orchestrator) RunCycle(ctx context.Context) (*models.CycleRecord, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrCycleRunning
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.CycleTimeout)
	defer cancel()

	record := &models.CycleRecord{}
	if err := o.cycles.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create cycle record: %w", err)
	}

	o.log.Info("survey cycle started", zap.String("cycle_id", record.ID.String()))

	var cnt counters
	err := o.runStages(ctx, &cnt)

	record.QueriesAttempted = cnt.queriesAttempted
	record.QueriesSucceeded = cnt.queriesSucceeded
	record.CandidatesDiscovered = cnt.candidatesDiscovered
	record.CandidatesEnqueued = cnt.candidatesEnqueued
	record.ScoringAttempts = cnt.scoringAttempts
	record.ScoringSuccesses = cnt.scoringSuccesses
	record.ScoringFailures = cnt.scoringFailures

	switch {
	case err != nil:
		msg := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "cycle timeout exceeded: " + msg
		}
		record.Status = models.CycleStatusFailed
		record.Error = &msg
	case cnt.queriesSucceeded < cnt.queriesAttempted:
		record.Status = models.CycleStatusPartial
	default:
		record.Status = models.CycleStatusCompleted
	}

	// Persist the record on a fresh context so a timed-out cycle still
	// leaves its counters behind.
	finishCtx, finishCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer finishCancel()
	if finishErr := o.cycles.Finish(finishCtx, record); finishErr != nil {
		o.log.Error("failed to persist cycle record",
			zap.String("cycle_id", record.ID.String()),
			zap.Error(finishErr),
		)
	}

	if o.observer != nil {
		o.observer.ObserveCycle(record)
	}

	o.log.Info("survey cycle finished",
		zap.String("cycle_id", record.ID.String()),
		zap.String("status", string(record.Status)),
		zap.Int("queries_attempted", record.QueriesAttempted),
		zap.Int("queries_succeeded", record.QueriesSucceeded),
		zap.Int("candidates_enqueued", record.CandidatesEnqueued),
		zap.Int("scoring_attempts", record.ScoringAttempts),
		zap.Int("scoring_successes", record.ScoringSuccesses),
		zap.Int("scoring_failures", record.ScoringFailures),
	)

	return record, err
}

func (o *Orchestrator) runStages(ctx context.Context, cnt *counters) error {
	if err := o.discover(ctx, cnt); err != nil {
		return err
	}
	return o.drain(ctx, cnt)
}

// discover runs the search/filter/enqueue stage for every active query at
// the configured fan-out. A transient catalog failure skips the affected
// query; a fatal one aborts the cycle before scoring.
func (o *Orchestrator) discover(ctx context.Context, cnt *counters) error {
	queries, err := o.queries.List(ctx)
	if err != nil {
		return fmt.Errorf("load queries: %w", err)
	}
	if len(queries) == 0 {
		o.log.Info("no search queries configured, skipping discovery")
		return nil
	}

	protected, known, err := o.channels.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot channel lists: %w", err)
	}

	fc := &FilterContext{
		Protected:   protected,
		Known:       known,
		MinDuration: o.cfg.MinDuration,
		MaxDuration: o.cfg.MaxDuration,
	}
	publishedAfter := time.Now().Add(-o.cfg.DiscoveryWindow)

	fanout := o.cfg.QueryFanout
	if fanout <= 0 {
		fanout = 1
	}

	work := make(chan *models.SearchQuery)
	var wg sync.WaitGroup
	var fatalErr error
	var fatalOnce sync.Once

	for i := 0; i < fanout; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range work {
				if ctx.Err() != nil {
					continue
				}

				cnt.add(func(c *counters) { c.queriesAttempted++ })

				if err := o.surveyQuery(ctx, q.Phrase, publishedAfter, fc, cnt); err != nil {
					if catalog.IsFatal(err) {
						fatalOnce.Do(func() { fatalErr = err })
						continue
					}
					o.log.Warn("query skipped for this cycle",
						zap.String("query", q.Phrase),
						zap.Error(err),
					)
					continue
				}

				cnt.add(func(c *counters) { c.queriesSucceeded++ })
			}
		}()
	}

	for _, q := range queries {
		work <- q
	}
	close(work)
	wg.Wait()

	if fatalErr != nil {
		return fmt.Errorf("catalog failure aborted cycle: %w", fatalErr)
	}
	return ctx.Err()
}

func (o *Orchestrator) surveyQuery(ctx context.Context, phrase string, publishedAfter time.Time, fc *FilterContext, cnt *counters) error {
	descriptors, err := o.catalog.Search(ctx, phrase, publishedAfter, int64(o.cfg.MaxResultsPerQuery))
	if err != nil {
		return err
	}

	cnt.add(func(c *counters) { c.candidatesDiscovered += len(descriptors) })

	if len(descriptors) == 0 {
		return nil
	}

	ids := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		ids = append(ids, d.ID)
	}

	durations, err := o.catalog.Details(ctx, ids)
	if err != nil {
		return err
	}

	for _, d := range descriptors {
		d.Duration = durations[d.ID]

		ok, reason := Filter(fc, d)
		if !ok {
			o.log.Debug("descriptor rejected",
				zap.String("video_id", d.ID),
				zap.String("channel_id", d.ChannelID),
				zap.String("reason", string(reason)),
			)
			continue
		}

		inserted, err := o.candidates.Enqueue(ctx, &models.CandidateVideo{
			VideoID:      d.ID,
			Title:        d.Title,
			Description:  d.Description,
			ChannelID:    d.ChannelID,
			ChannelTitle: d.ChannelTitle,
			Query:        phrase,
			PublishedAt:  d.PublishedAt,
			Duration:     d.Duration,
		})
		if err != nil {
			return fmt.Errorf("enqueue candidate %s: %w", d.ID, err)
		}

		if inserted {
			cnt.add(func(c *counters) { c.candidatesEnqueued++ })

			// The channel has now been surveyed; later cycles skip it.
			if err := o.channels.MarkKnown(ctx, d.ChannelID); err != nil {
				return fmt.Errorf("mark surveyed channel %s: %w", d.ChannelID, err)
			}
		}
	}

	return nil
}

// drain scores every pending candidate at the configured fan-out. Each
// video id is protected by a lease so that overlapping cycles never score
// it twice.
func (o *Orchestrator) drain(ctx context.Context, cnt *counters) error {
	pending, err := o.candidates.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending candidates: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	fanout := o.cfg.ScoreFanout
	if fanout <= 0 {
		fanout = 1
	}

	work := make(chan *models.CandidateVideo)
	var wg sync.WaitGroup
	var storeErr error
	var storeOnce sync.Once

	for i := 0; i < fanout; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for candidate := range work {
				if ctx.Err() != nil {
					continue
				}
				if err := o.scoreCandidate(ctx, candidate, cnt); err != nil {
					storeOnce.Do(func() { storeErr = err })
				}
			}
		}()
	}

	for _, candidate := range pending {
		work <- candidate
	}
	close(work)
	wg.Wait()

	if storeErr != nil {
		return storeErr
	}
	return ctx.Err()
}

func (o *Orchestrator) scoreCandidate(ctx context.Context, candidate *models.CandidateVideo, cnt *counters) error {
	videoID := candidate.VideoID

	existing, err := o.results.Get(ctx, videoID)
	if err != nil && !db.IsNotFound(err) {
		return fmt.Errorf("load result %s: %w", videoID, err)
	}
	if existing != nil && existing.Status == models.ResultStatusFailed && existing.Attempts >= o.cfg.MaxScoreAttempts {
		// Retry budget exhausted in an earlier cycle; retire the candidate.
		if err := o.candidates.Remove(ctx, videoID); err != nil {
			return fmt.Errorf("retire candidate %s: %w", videoID, err)
		}
		return nil
	}

	acquired, err := o.leases.Acquire(ctx, videoID, o.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("acquire lease %s: %w", videoID, err)
	}
	if !acquired {
		o.log.Debug("lease held elsewhere, skipping", zap.String("video_id", videoID))
		return nil
	}
	defer func() {
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer releaseCancel()
		if err := o.leases.Release(releaseCtx, videoID); err != nil {
			o.log.Warn("failed to release lease", zap.String("video_id", videoID), zap.Error(err))
		}
	}()

	attempts, begun, err := o.results.BeginScoring(ctx, videoID)
	if err != nil {
		return fmt.Errorf("begin scoring %s: %w", videoID, err)
	}
	if !begun {
		// Already completed by another worker; the candidate has graduated.
		if err := o.candidates.Remove(ctx, videoID); err != nil {
			return fmt.Errorf("retire candidate %s: %w", videoID, err)
		}
		return nil
	}

	cnt.add(func(c *counters) { c.scoringAttempts++ })

	outcome, err := o.scorer.Score(ctx, videoID, o.registryVersion)
	if err != nil {
		outcome = &scorer.Outcome{
			FailureKind: models.FailureInternal,
			FailureMsg:  err.Error(),
		}
	}

	// A cancelled cycle discards in-flight outcomes instead of persisting
	// them; the candidate is retried by the next cycle.
	if ctx.Err() != nil {
		return nil
	}

	if outcome.Completed {
		return o.recordCompleted(ctx, videoID, attempts, outcome, cnt)
	}
	return o.recordFailed(ctx, videoID, attempts, outcome, cnt)
}

func (o *Orchestrator) recordCompleted(ctx context.Context, videoID string, attempts int, outcome *scorer.Outcome, cnt *counters) error {
	intervals, err := timecode.NormalizeIntervals(outcome.Intervals, outcome.TotalDuration)
	if err != nil {
		return o.recordFailed(ctx, videoID, attempts, &scorer.Outcome{
			FailureKind: models.FailureInternal,
			FailureMsg:  fmt.Sprintf("invalid intervals: %v", err),
		}, cnt)
	}

	now := time.Now()
	result := &models.Result{
		VideoID:       videoID,
		Percentage:    outcome.Percentage,
		Intervals:     intervals,
		TotalDuration: outcome.TotalDuration,
		Status:        models.ResultStatusCompleted,
		Attempts:      attempts,
		ProcessedAt:   &now,
	}

	if err := o.results.Upsert(ctx, result); err != nil {
		return fmt.Errorf("persist result %s: %w", videoID, err)
	}
	if err := o.candidates.Remove(ctx, videoID); err != nil {
		return fmt.Errorf("retire candidate %s: %w", videoID, err)
	}

	cnt.add(func(c *counters) { c.scoringSuccesses++ })

	copied := scorer.Copied(result.Percentage, o.cfg.CopiedThreshold)
	o.log.Info("scoring completed",
		zap.String("video_id", videoID),
		zap.Float64("percentage", result.Percentage),
		zap.Bool("copied", copied),
	)

	if o.publisher != nil {
		if err := o.publisher.PublishResultCompleted(ctx, result, copied); err != nil {
			o.log.Warn("failed to publish completed result",
				zap.String("video_id", videoID),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (o *Orchestrator) recordFailed(ctx context.Context, videoID string, attempts int, outcome *scorer.Outcome, cnt *counters) error {
	kind := outcome.FailureKind
	msg := outcome.FailureMsg
	result := &models.Result{
		VideoID:        videoID,
		Status:         models.ResultStatusFailed,
		FailureKind:    &kind,
		FailureMessage: &msg,
		Attempts:       attempts,
	}

	if err := o.results.Upsert(ctx, result); err != nil {
		return fmt.Errorf("persist failed result %s: %w", videoID, err)
	}

	cnt.add(func(c *counters) { c.scoringFailures++ })

	o.log.Warn("scoring failed",
		zap.String("video_id", videoID),
		zap.String("failure_kind", string(kind)),
		zap.Int("attempts", attempts),
	)

	if attempts >= o.cfg.MaxScoreAttempts {
		// Permanently failed; stop retrying on later cycles.
		if err := o.candidates.Remove(ctx, videoID); err != nil {
			return fmt.Errorf("retire candidate %s: %w", videoID, err)
		}
	}

	return nil
}
