//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"famlink/pkg/domain"
	"famlink/pkg/platform/audit"
	"famlink/pkg/testutil/containers"
)

func TestSinkIntegration(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "famlink.notifications.audit.test"
	sink, err := NewSink(ctx, rp.Brokers, WithTopic(topic))
	require.NoError(t, err)
	defer sink.Close()

	userID := domain.UserID(uuid.New())
	event := audit.Event{
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		UserID:    userID,
		Action:    audit.ActionNoticeCreated,
		NoticeID:  42,
		Kind:      "GOAL",
		RequestID: "req-123",
	}
	require.NoError(t, sink.Emit(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, userID.String(), string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, audit.ActionNoticeCreated, got.Action)
	assert.Equal(t, int64(42), got.NoticeID)
	assert.Equal(t, "GOAL", got.Kind)
	assert.Equal(t, "req-123", got.RequestID)
	assert.Equal(t, userID, got.UserID)
}

// Emitting on a fresh cluster provisions the topic; a second sink against the
// same topic must not fail on the already-exists response.
func TestSinkEnsureTopicIdempotent(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	first, err := NewSink(ctx, rp.Brokers)
	require.NoError(t, err)
	defer first.Close()

	second, err := NewSink(ctx, rp.Brokers)
	require.NoError(t, err)
	defer second.Close()
}
