package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/event-registration-api/internal/models"
	"github.com/noah-isme/event-registration-api/pkg/jobs"
	"github.com/noah-isme/event-registration-api/pkg/mail"
)

type capturePublisher struct {
	mu    sync.Mutex
	items []models.Notification
	err   error
}

func (p *capturePublisher) Publish(ctx context.Context, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.err != nil {
		return p.err
	}
	p.items = append(p.items, n)
	return nil
}

func sampleNotificationRegistration() models.Registration {
	return models.Registration{
		RegistrationNumber: "1234567",
		FullName:           "ASHA RAO",
		Email:              "asha@example.com",
		ContactNumber:      "9876543210",
		Department:         "cse",
		Ken:                "K12345",
		FoodPreference:     "Veg",
		RegistrationType:   "single",
		Accommodation:      "no",
		CreatedBy:          models.CreatedByUser,
	}
}

func TestNotifyRegisteredSendsConfirmationAndAdminNotice(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewNotificationService(pub, "admin@example.com", nil, nil)

	svc.NotifyRegistered(context.Background(), sampleNotificationRegistration(), models.NotificationActionCreatedByAdmin)

	require.Len(t, pub.items, 2)
	assert.Equal(t, mail.TemplateRegistrationConfirmation, pub.items[0].Template)
	assert.Equal(t, "asha@example.com", pub.items[0].Recipient)
	assert.Equal(t, mail.TemplateAdminNotification, pub.items[1].Template)
	assert.Equal(t, "admin@example.com", pub.items[1].Recipient)
	assert.Equal(t, models.NotificationActionCreatedByAdmin, pub.items[1].Action)
	assert.NotEqual(t, pub.items[0].ID, pub.items[1].ID)
}

func TestNotifyVerifiedWithoutAdminEmail(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewNotificationService(pub, "", nil, nil)

	svc.NotifyVerified(context.Background(), sampleNotificationRegistration())

	require.Len(t, pub.items, 1)
	assert.Equal(t, mail.TemplateVerificationConfirmation, pub.items[0].Template)
}

func TestNotifySurvivesCancelledRequest(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewNotificationService(pub, "admin@example.com", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc.NotifyVerified(ctx, sampleNotificationRegistration())
	assert.Len(t, pub.items, 2)
}

func TestNotifyLogsDispatchFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	pub := &capturePublisher{err: errors.New("queue full")}
	svc := NewNotificationService(pub, "admin@example.com", NewMetricsService(), zap.New(core))

	svc.NotifyRegistered(context.Background(), sampleNotificationRegistration(), models.NotificationActionCreated)
	assert.Equal(t, 2, logs.FilterMessage("failed to dispatch notification").Len())
}

type captureProducer struct {
	key, value []byte
}

func (p *captureProducer) Publish(_ context.Context, key, value []byte) error {
	p.key, p.value = key, value
	return nil
}

func TestKafkaPublisherEncodesJSON(t *testing.T) {
	producer := &captureProducer{}
	n := models.Notification{ID: "n-1", Template: mail.TemplateAdminNotification, Recipient: "admin@example.com", Action: "VERIFIED", Registration: sampleNotificationRegistration()}

	require.NoError(t, NewKafkaPublisher(producer).Publish(context.Background(), n))
	assert.Equal(t, "1234567", string(producer.key))

	var decoded models.Notification
	require.NoError(t, json.Unmarshal(producer.value, &decoded))
	assert.Equal(t, n.ID, decoded.ID)
	assert.Equal(t, n.Registration.Ken, decoded.Registration.Ken)
}

type captureSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (s *captureSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newDeliveryForTest(t *testing.T, sender mail.Sender) *MailDeliveryService {
	t.Helper()
	renderer, err := mail.NewRenderer()
	require.NoError(t, err)
	return NewMailDeliveryService(renderer, sender, mail.Event{Name: "Silver Jubilee Celebration", Title: "Silver Jubilee Event"}, nil, nil)
}

func TestMailDeliveryRendersAndSends(t *testing.T) {
	sender := &captureSender{}
	svc := newDeliveryForTest(t, sender)
	verified := "7654321"
	reg := sampleNotificationRegistration()
	reg.VerifiedNumber = &verified

	err := svc.Deliver(context.Background(), models.Notification{Template: mail.TemplateAdminNotification, Recipient: "admin@example.com", Action: "VERIFIED", Registration: reg})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "admin@example.com", sender.sent[0].To)
	assert.Equal(t, "Registration Verified - Silver Jubilee Celebration", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].HTML, "7654321")
	assert.Contains(t, sender.sent[0].HTML, "Computer Science Engineering (CSE)")
}

func TestMailDeliveryPropagatesSendError(t *testing.T) {
	svc := newDeliveryForTest(t, &captureSender{err: errors.New("smtp down")})

	err := svc.Deliver(context.Background(), models.Notification{Template: mail.TemplateRegistrationConfirmation, Recipient: "asha@example.com", Registration: sampleNotificationRegistration()})
	assert.Error(t, err)
}

func TestMailDeliveryHandlers(t *testing.T) {
	sender := &captureSender{}
	svc := newDeliveryForTest(t, sender)
	n := models.Notification{ID: "n-1", Template: mail.TemplateRegistrationConfirmation, Recipient: "asha@example.com", Registration: sampleNotificationRegistration()}

	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: "n-1", Payload: n}))
	assert.Error(t, svc.HandleJob(context.Background(), jobs.Job{ID: "bad", Payload: "nope"}))

	raw, err := json.Marshal(n)
	require.NoError(t, err)
	require.NoError(t, svc.HandleMessage(context.Background(), nil, raw))
	assert.Error(t, svc.HandleMessage(context.Background(), nil, []byte("{")))
	assert.Len(t, sender.sent, 2)
}

func TestQueuePublisherDeliversThroughWorkers(t *testing.T) {
	sender := &captureSender{}
	delivery := newDeliveryForTest(t, sender)
	queue := jobs.NewQueue("notifications", delivery.HandleJob, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	queue.Start(context.Background())

	svc := NewNotificationService(NewQueuePublisher(queue), "admin@example.com", nil, nil)
	svc.NotifyRegistered(context.Background(), sampleNotificationRegistration(), models.NotificationActionCreated)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	queue.Stop(ctx)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Len(t, sender.sent, 2)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, NewLogPublisher(zap.New(core)).Publish(context.Background(), models.Notification{ID: "n-1", Template: "t"}))
	assert.Equal(t, 1, logs.Len())
}
