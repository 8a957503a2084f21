package broker

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-registration-api/pkg/config"
)

func TestNewProducerValidatesConfig(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{Topic: "t"}, nil)
	assert.Error(t, err)

	_, err = NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)

	p, err := NewProducer(config.KafkaConfig{
		Brokers:  []string{"a:9092", "b:9092"},
		Topic:    "registration.notifications",
		Username: "user",
		Password: "secret",
		TLS:      true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "registration.notifications", p.writer.Topic)
	assert.Equal(t, kafka.RequireAll, p.writer.RequiredAcks)
	assert.Equal(t, 1, p.writer.BatchSize)
	assert.LessOrEqual(t, p.writer.BatchTimeout, 10*time.Millisecond)
	assert.Positive(t, p.writer.BatchTimeout)
	transport, ok := p.writer.Transport.(*kafka.Transport)
	require.True(t, ok)
	assert.NotNil(t, transport.SASL)
	assert.NotNil(t, transport.TLS)
}

func TestNilProducerPublishIsNoop(t *testing.T) {
	var p *Producer
	assert.NoError(t, p.Publish(context.Background(), []byte("k"), []byte("v")))
	assert.NoError(t, p.Close())
}

func TestNewConsumerRequiresHandler(t *testing.T) {
	_, err := NewConsumer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, nil, nil)
	assert.Error(t, err)
}

func TestSASLMechanismOnlyWithUsername(t *testing.T) {
	assert.Nil(t, saslMechanism(config.KafkaConfig{}))
	assert.NotNil(t, saslMechanism(config.KafkaConfig{Username: "u", Password: "p"}))
}
