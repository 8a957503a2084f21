package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/models"
	"github.com/noah-isme/event-registration-api/pkg/jobs"
	"github.com/noah-isme/event-registration-api/pkg/mail"
)

// MailDeliveryService renders notifications and hands them to a mail sender.
type MailDeliveryService struct {
	renderer *mail.Renderer
	sender   mail.Sender
	event    mail.Event
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewMailDeliveryService constructs a MailDeliveryService.
func NewMailDeliveryService(renderer *mail.Renderer, sender mail.Sender, event mail.Event, metrics *MetricsService, logger *zap.Logger) *MailDeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailDeliveryService{renderer: renderer, sender: sender, event: event, metrics: metrics, logger: logger}
}

// Deliver renders and sends one notification.
func (s *MailDeliveryService) Deliver(ctx context.Context, n models.Notification) error {
	msg, err := s.renderer.Render(n.Template, n.Recipient, mail.TemplateData{
		Event:      s.event,
		Registrant: toRegistrant(n.Registration),
		Action:     n.Action,
	})
	if err != nil {
		s.metrics.RecordNotification(n.Template, notificationStatusError)
		return fmt.Errorf("render %s: %w", n.Template, err)
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.RecordNotification(n.Template, notificationStatusError)
		s.logger.Warn("email delivery failed",
			zap.String("template", n.Template),
			zap.String("registration_number", n.Registration.RegistrationNumber),
			zap.Error(err),
		)
		return err
	}

	s.metrics.RecordNotification(n.Template, notificationStatusSent)
	s.logger.Info("email sent",
		zap.String("template", n.Template),
		zap.String("registration_number", n.Registration.RegistrationNumber),
	)
	return nil
}

// HandleJob adapts Deliver to the in-process queue.
func (s *MailDeliveryService) HandleJob(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	return s.Deliver(ctx, n)
}

// HandleMessage adapts Deliver to the Kafka consumer.
func (s *MailDeliveryService) HandleMessage(ctx context.Context, _ []byte, value []byte) error {
	var n models.Notification
	if err := json.Unmarshal(value, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	return s.Deliver(ctx, n)
}

func toRegistrant(reg models.Registration) mail.Registrant {
	verified := ""
	if reg.VerifiedNumber != nil {
		verified = *reg.VerifiedNumber
	}
	return mail.Registrant{
		RegistrationNumber: reg.RegistrationNumber,
		FullName:           reg.FullName,
		Email:              reg.Email,
		ContactNumber:      reg.ContactNumber,
		Department:         models.DepartmentDisplayName(reg.Department),
		Ken:                reg.Ken,
		FoodPreference:     reg.FoodPreference,
		RegistrationType:   reg.RegistrationType,
		Accommodation:      reg.Accommodation,
		VerifiedNumber:     verified,
		CreatedBy:          reg.CreatedBy,
	}
}
