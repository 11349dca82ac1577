//go:build integration
// +build integration

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/securerights/copyright-detection-go/internal/config"
	"github.com/securerights/copyright-detection-go/internal/db/models"
	"github.com/securerights/copyright-detection-go/pkg/logger"
)

var (
	loggerInitOnce sync.Once
	loggerInitErr  error
)

func initTestLogger() error {
	loggerInitOnce.Do(func() {
		loggerInitErr = logger.Init("debug", "")
	})
	return loggerInitErr
}

func setupTestRabbitMQ(t *testing.T) (*config.RabbitMQConfig, func()) {
	if err := initTestLogger(); err != nil {
		t.Fatalf("Failed to initialize test logger: %v", err)
	}

	ctx := context.Background()

	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.13-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start rabbitmq container: %v", err)
	}

	host, err := rabbitmqContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get host: %v", err)
	}

	port, err := rabbitmqContainer.MappedPort(ctx, "5672/tcp")
	if err != nil {
		t.Fatalf("Failed to get port: %v", err)
	}

	cfg := &config.RabbitMQConfig{
		Host:       host,
		Port:       port.Int(),
		User:       "guest",
		Password:   "guest",
		Exchange:   "test.results",
		Queue:      "test.results.completed",
		RoutingKey: "result.completed",
	}

	cleanup := func() {
		if err := rabbitmqContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return cfg, cleanup
}

func TestNewPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	time.Sleep(2 * time.Second)

	p, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	defer p.Close()

	if !p.IsHealthy() {
		t.Error("IsHealthy() = false, want true")
	}
}

// Confirmations must keep flowing across sequential publishes; a stalled
// confirm dispatch surfaces here as a wait timeout on the third publish.
func TestPublishResultCompletedSequential(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	time.Sleep(2 * time.Second)

	p, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		result := &models.Result{
			VideoID:       fmt.Sprintf("video-%d", i),
			Percentage:    72.5,
			Intervals:     []models.Interval{{Start: 10, End: 30}},
			TotalDuration: 120,
			Status:        models.ResultStatusCompleted,
			ProcessedAt:   &now,
		}
		if err := p.PublishResultCompleted(ctx, result, true); err != nil {
			t.Fatalf("PublishResultCompleted() #%d error = %v", i, err)
		}
	}
}

func TestPublishedEventReachesQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	time.Sleep(2 * time.Second)

	p, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	result := &models.Result{
		VideoID:       "v1abc",
		Percentage:    72.5,
		Intervals:     []models.Interval{{Start: 10, End: 30}},
		TotalDuration: 120,
		Status:        models.ResultStatusCompleted,
	}
	if err := p.PublishResultCompleted(ctx, result, true); err != nil {
		t.Fatalf("PublishResultCompleted() error = %v", err)
	}

	connURL := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.User, cfg.Password, cfg.Host, cfg.Port)
	conn, err := amqp.Dial(connURL)
	if err != nil {
		t.Fatalf("Failed to connect consumer: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("Failed to open consumer channel: %v", err)
	}
	defer ch.Close()

	delivery, ok, err := ch.Get(cfg.Queue, true)
	if err != nil {
		t.Fatalf("Failed to get message: %v", err)
	}
	if !ok {
		t.Fatal("expected a message on the queue")
	}

	var event ResultCompletedEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	if event.VideoID != "v1abc" {
		t.Errorf("VideoID = %q, want %q", event.VideoID, "v1abc")
	}
	if !event.Copied {
		t.Error("Copied = false, want true")
	}
	if delivery.MessageId != "v1abc" {
		t.Errorf("MessageId = %q, want %q", delivery.MessageId, "v1abc")
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	time.Sleep(2 * time.Second)

	p, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	p.Close()
	if p.IsHealthy() {
		t.Error("IsHealthy() after Close() = true, want false")
	}

	result := &models.Result{VideoID: "v1", Status: models.ResultStatusCompleted}
	if err := p.PublishResultCompleted(context.Background(), result, false); err == nil {
		t.Error("PublishResultCompleted() after Close() = nil, want error")
	}
}
