// The notifier consumes completed-result events from RabbitMQ and mails an
// alert for every result that crossed the copied threshold.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/securerights/copyright-detection-go/internal/config"
	"github.com/securerights/copyright-detection-go/internal/events"
	"github.com/securerights/copyright-detection-go/internal/mail"
	"github.com/securerights/copyright-detection-go/internal/timecode"
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

	log := logger.Named("notifier")

	if cfg.Mail.To == "" {
		log.Fatal("mail.to must be configured for the notifier")
	}

	connURL := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)

	conn, err := amqp.Dial(connURL)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("failed to open channel", zap.Error(err))
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		log.Fatal("failed to set prefetch", zap.Error(err))
	}

	deliveries, err := ch.Consume(
		cfg.RabbitMQ.Queue,
		"securerights-notifier",
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		log.Fatal("failed to start consumer", zap.Error(err))
	}

	sender := mail.NewHTTPSender(&cfg.Mail)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("notifier started", zap.String("queue", cfg.RabbitMQ.Queue))

	for {
		select {
		case <-ctx.Done():
			log.Info("notifier stopped")
			return
		case delivery, ok := <-deliveries:
			if !ok {
				log.Error("delivery channel closed")
				return
			}
			handleDelivery(ctx, delivery, sender, cfg.Mail.To, log)
		}
	}
}

func handleDelivery(ctx context.Context, delivery amqp.Delivery, sender mail.Sender, to string, log *zap.Logger) {
	var event events.ResultCompletedEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		log.Error("failed to decode event, dropping message",
			zap.String("message_id", delivery.MessageId),
			zap.Error(err),
		)
		_ = delivery.Nack(false, false)
		return
	}

	if !event.Copied {
		_ = delivery.Ack(false)
		return
	}

	if err := sender.Send(ctx, alertFor(&event, to)); err != nil {
		log.Error("failed to send alert, requeueing",
			zap.String("video_id", event.VideoID),
			zap.Error(err),
		)
		_ = delivery.Nack(false, true)
		return
	}

	log.Info("alert sent",
		zap.String("video_id", event.VideoID),
		zap.Float64("percentage", event.Percentage),
	)
	_ = delivery.Ack(false)
}

func alertFor(event *events.ResultCompletedEvent, to string) *mail.Message {
	var b strings.Builder

	fmt.Fprintf(&b, "A surveyed video was scored as a likely copy.\n\n")
	fmt.Fprintf(&b, "Video: https://www.youtube.com/watch?v=%s\n", event.VideoID)
	fmt.Fprintf(&b, "Similarity: %.2f%%\n", event.Percentage)

	if len(event.Intervals) > 0 {
		b.WriteString("Matched intervals:\n")
		for _, iv := range event.Intervals {
			fmt.Fprintf(&b, "  %s\n", timecode.FormatInterval(iv))
		}
	}

	return &mail.Message{
		To:      to,
		Subject: fmt.Sprintf("Likely copy detected: %s (%.0f%%)", event.VideoID, event.Percentage),
		Body:    b.String(),
	}
}
