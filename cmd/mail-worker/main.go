package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/service"
	"github.com/noah-isme/event-registration-api/pkg/broker"
	"github.com/noah-isme/event-registration-api/pkg/config"
	"github.com/noah-isme/event-registration-api/pkg/logger"
	"github.com/noah-isme/event-registration-api/pkg/mail"
)

// mail-worker consumes notification events published with NOTIFY_DRIVER=kafka and sends the emails.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "mail-worker")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	renderer, err := mail.NewRenderer()
	if err != nil {
		logr.Fatal("failed to parse email templates", zap.Error(err))
	}
	delivery := service.NewMailDeliveryService(renderer, mail.NewSender(cfg.Mail, logr), mail.EventFromConfig(cfg.Event), nil, logr)

	consumer, err := broker.NewConsumer(cfg.Kafka, withRetry(delivery.HandleMessage, cfg.Notify.MaxRetries, cfg.Notify.RetryDelay, logr), logr)
	if err != nil {
		logr.Fatal("failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logr.Info("mail worker listening",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group_id", cfg.Kafka.GroupID),
	)
	if err := consumer.Run(ctx); err != nil {
		logr.Error("consumer stopped with error", zap.Error(err))
	}
	logr.Info("mail worker stopped")
}

// withRetry retries handler up to maxRetries extra times, waiting delay between attempts.
func withRetry(handler broker.MessageHandler, maxRetries int, delay time.Duration, logr *zap.Logger) broker.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		var err error
		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				logr.Warn("retrying notification", zap.ByteString("key", key), zap.Int("attempt", attempt), zap.Error(err))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			if err = handler(ctx, key, value); err == nil {
				return nil
			}
		}
		return err
	}
}
