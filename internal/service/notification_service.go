package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/models"
	"github.com/noah-isme/event-registration-api/pkg/jobs"
	"github.com/noah-isme/event-registration-api/pkg/mail"
)

// Notification dispatch outcomes recorded in metrics.
const (
	notificationStatusQueued = "queued"
	notificationStatusFailed = "dispatch_failed"
	notificationStatusSent   = "sent"
	notificationStatusError  = "send_failed"
)

// NotificationJobType tags notification jobs on the in-process queue.
const NotificationJobType = "notification"

// NotificationPublisher hands a notification to a delivery channel.
type NotificationPublisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// NotificationService turns registration events into email notifications. It never fails the caller.
type NotificationService struct {
	publisher  NotificationPublisher
	adminEmail string
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotificationService constructs a NotificationService. An empty adminEmail skips admin notifications.
func NewNotificationService(publisher NotificationPublisher, adminEmail string, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		publisher:  publisher,
		adminEmail: adminEmail,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// NotifyRegistered sends the registrant a confirmation and the administrator a notice.
func (s *NotificationService) NotifyRegistered(ctx context.Context, reg models.Registration, action string) {
	s.dispatch(ctx, s.build(mail.TemplateRegistrationConfirmation, reg.Email, "", reg))
	if s.adminEmail != "" {
		s.dispatch(ctx, s.build(mail.TemplateAdminNotification, s.adminEmail, action, reg))
	}
}

// NotifyVerified sends the verification confirmation and the administrator notice.
func (s *NotificationService) NotifyVerified(ctx context.Context, reg models.Registration) {
	s.dispatch(ctx, s.build(mail.TemplateVerificationConfirmation, reg.Email, "", reg))
	if s.adminEmail != "" {
		s.dispatch(ctx, s.build(mail.TemplateAdminNotification, s.adminEmail, models.NotificationActionVerified, reg))
	}
}

func (s *NotificationService) build(template, recipient, action string, reg models.Registration) models.Notification {
	return models.Notification{
		ID:           uuid.NewString(),
		Template:     template,
		Recipient:    recipient,
		Action:       action,
		Registration: reg,
		CreatedAt:    s.now().UTC(),
	}
}

func (s *NotificationService) dispatch(ctx context.Context, n models.Notification) {
	if s.publisher == nil {
		return
	}
	// The request may finish before the publisher does.
	ctx = context.WithoutCancel(ctx)
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.metrics.RecordNotification(n.Template, notificationStatusFailed)
		s.logger.Error("failed to dispatch notification",
			zap.String("template", n.Template),
			zap.String("registration_number", n.Registration.RegistrationNumber),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordNotification(n.Template, notificationStatusQueued)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// QueuePublisher pushes notifications onto the in-process worker queue.
type QueuePublisher struct {
	queue jobEnqueuer
}

// NewQueuePublisher wraps a queue.
func NewQueuePublisher(queue jobEnqueuer) *QueuePublisher {
	return &QueuePublisher{queue: queue}
}

// Publish enqueues the notification.
func (p *QueuePublisher) Publish(_ context.Context, n models.Notification) error {
	return p.queue.Enqueue(jobs.Job{ID: n.ID, Type: NotificationJobType, Payload: n})
}

type messageProducer interface {
	Publish(ctx context.Context, key, value []byte) error
}

// KafkaPublisher publishes notifications as JSON, keyed by registration number.
type KafkaPublisher struct {
	producer messageProducer
}

// NewKafkaPublisher wraps a broker producer.
func NewKafkaPublisher(producer messageProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// Publish encodes and sends the notification.
func (p *KafkaPublisher) Publish(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return p.producer.Publish(ctx, []byte(n.Registration.RegistrationNumber), payload)
}

// LogPublisher only logs notifications. Useful when no mail transport is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher constructs a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the notification.
func (p *LogPublisher) Publish(_ context.Context, n models.Notification) error {
	p.logger.Info("notification",
		zap.String("id", n.ID),
		zap.String("template", n.Template),
		zap.String("recipient", n.Recipient),
		zap.String("action", n.Action),
		zap.String("registration_number", n.Registration.RegistrationNumber),
	)
	return nil
}
