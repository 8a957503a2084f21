// Package mail renders and delivers the transactional emails sent to registrants and
// the event administrator.
package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/pkg/config"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender when a host is configured, otherwise a LogSender.
func NewSender(cfg config.MailConfig, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		if logger != nil {
			logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
		}
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg)
}

// EventFromConfig copies the configured event details.
func EventFromConfig(cfg config.EventConfig) Event {
	return Event{
		Name:      cfg.Name,
		Title:     cfg.Title,
		Dates:     cfg.Dates,
		Venue:     cfg.Venue,
		Organizer: cfg.Organizer,
	}
}
