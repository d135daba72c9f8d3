// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"famlink/pkg/platform/audit"
)

// DefaultTopic is the audit event topic.
const DefaultTopic = "famlink.notifications.audit"

// Sink is a Kafka-backed audit.Emitter. Events are keyed by user ID so all
// events for one user land in one partition, preserving their order.
type Sink struct {
	client *kgo.Client
	topic  string
}

// Option configures the Sink.
type Option func(*Sink)

// WithTopic overrides the target topic.
func WithTopic(topic string) Option {
	return func(s *Sink) { s.topic = topic }
}

// NewSink connects to the given brokers and ensures the topic exists.
func NewSink(ctx context.Context, brokers []string, opts ...Option) (*Sink, error) {
	s := &Sink{topic: DefaultTopic}
	for _, opt := range opts {
		opt(s)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(s.topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	s.client = client

	if err := s.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// ensureTopic creates the audit topic if missing so a fresh cluster works
// without manual provisioning.
func (s *Sink) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create audit topic: %w", resp.Err)
	}
	return nil
}

// Emit produces the event synchronously.
func (s *Sink) Emit(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(event.UserID.String()),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (s *Sink) Close() {
	s.client.Close()
}
