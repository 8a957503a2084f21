package models

import "time"

// Admin notification actions.
const (
	NotificationActionCreated        = "CREATED"
	NotificationActionCreatedByAdmin = "CREATED_BY_ADMIN"
	NotificationActionVerified       = "VERIFIED"
)

// Notification is a queued email intent. It travels through the in-process queue or Kafka as JSON.
type Notification struct {
	ID           string       `json:"id"`
	Template     string       `json:"template"`
	Recipient    string       `json:"recipient"`
	Action       string       `json:"action,omitempty"`
	Registration Registration `json:"registration"`
	CreatedAt    time.Time    `json:"createdAt"`
}
