package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/securerights/copyright-detection-go/internal/catalog"
	"github.com/securerights/copyright-detection-go/internal/config"
	"github.com/securerights/copyright-detection-go/internal/db"
	"github.com/securerights/copyright-detection-go/internal/db/repository"
	"github.com/securerights/copyright-detection-go/internal/events"
	"github.com/securerights/copyright-detection-go/internal/handler"
	"github.com/securerights/copyright-detection-go/internal/identity"
	"github.com/securerights/copyright-detection-go/internal/metrics"
	"github.com/securerights/copyright-detection-go/internal/notice"
	"github.com/securerights/copyright-detection-go/internal/pipeline"
	"github.com/securerights/copyright-detection-go/internal/render"
	"github.com/securerights/copyright-detection-go/internal/scorer"
	"github.com/securerights/copyright-detection-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush on exit

	log := logger.Named("server")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	log.Info("database connection established",
		zap.String("host", cfg.Database.Host),
		zap.Int("max_conns", cfg.Database.MaxConnections),
	)

	queryRepo := repository.NewQueryRepository(pool)
	channelRepo := repository.NewChannelListRepository(pool)
	candidateRepo := repository.NewCandidateRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	cycleRepo := repository.NewCycleRepository(pool)
	reportRepo := repository.NewReportRepository(pool)

	catalogClient, err := catalog.NewYouTubeClient(&cfg.Catalog)
	if err != nil {
		log.Fatal("failed to initialize catalog client", zap.Error(err))
	}

	scorerClient := scorer.NewHTTPClient(&cfg.Scorer)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	leases := pipeline.NewRedisLeaseStore(redisClient, "securerights:lease")

	// The event publisher is optional: a broker outage must not keep the
	// detection pipeline from running.
	var publisher pipeline.ResultPublisher
	rabbitPublisher, err := events.NewPublisher(&cfg.RabbitMQ)
	if err != nil {
		log.Warn("failed to connect to RabbitMQ, result events will not be published", zap.Error(err))
	} else {
		publisher = rabbitPublisher
		defer rabbitPublisher.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	orchestrator := pipeline.NewOrchestrator(cfg.Pipeline, cfg.Scorer.RegistryVersion, pipeline.Deps{
		Queries:    queryRepo,
		Channels:   channelRepo,
		Candidates: candidateRepo,
		Results:    resultRepo,
		Cycles:     cycleRepo,
		Catalog:    catalogClient,
		Scorer:     scorerClient,
		Leases:     leases,
		Publisher:  publisher,
		Observer:   m,
	})

	verifier := identity.NewHTTPVerifier(&cfg.Identity)
	noticeService := notice.NewService(reportRepo, resultRepo)
	pdfRenderer := render.NewHTTPRenderer(&cfg.PDF)

	engine := handler.NewRouter(handler.Routers{
		Health:   handler.NewHealthHandler(pool),
		Queries:  handler.NewQueryHandler(queryRepo),
		Allow:    handler.NewAllowlistHandler(channelRepo),
		Pipeline: handler.NewPipelineHandler(orchestrator, candidateRepo, resultRepo, cycleRepo, cfg.Pipeline.CopiedThreshold),
		Reports:  handler.NewReportHandler(noticeService, pdfRenderer, m.ReportsSubmitted, m.NoticesBuilt),
		Verifier: verifier,
		Registry: registry,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go runScheduler(schedulerCtx, orchestrator, cfg.Pipeline.CycleInterval, log)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal("server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		stopScheduler()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				log.Error("failed to close server", zap.Error(err))
			}
			os.Exit(1)
		}

		log.Info("server stopped gracefully")
	}
}

// runScheduler triggers a survey cycle every interval until ctx is cancelled.
// A zero interval disables scheduling; cycles then run on demand only.
func runScheduler(ctx context.Context, orchestrator *pipeline.Orchestrator, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		log.Info("cycle scheduler disabled")
		return
	}

	log.Info("cycle scheduler started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("cycle scheduler stopped")
			return
		case <-ticker.C:
			if _, err := orchestrator.RunCycle(ctx); err != nil {
				if errors.Is(err, pipeline.ErrCycleRunning) {
					log.Debug("skipping scheduled cycle, previous cycle still running")
					continue
				}
				log.Error("scheduled cycle failed", zap.Error(err))
			}
		}
	}
}
