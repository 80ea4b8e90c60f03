package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	published []publishedMessage
}

type publishedMessage struct {
	routingKey string
	payload    json.RawMessage
}

func (p *capturingPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.published = append(p.published, publishedMessage{routingKey: routingKey, payload: payload})
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.calls++
	return errors.New("broker unavailable")
}

func (p *failingPublisher) Close() error { return nil }

func testRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       2,
		RetryBackoffBase: 0,
		RetryBackoffMax:  time.Second,
	}
}

func saveTestMessage(t *testing.T, repo *MemoryRepository) *Message {
	t.Helper()
	msg, err := NewMessage(newTestEvent(uuid.New(), "Walking tour"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), msg))
	return msg
}

func TestRelay_DrainOnce_PublishesPendingMessages(t *testing.T) {
	repo := NewMemoryRepository()
	publisher := &capturingPublisher{}
	relay := NewRelay(repo, publisher, testRelayConfig(), nil)

	first := saveTestMessage(t, repo)
	second := saveTestMessage(t, repo)

	require.NoError(t, relay.DrainOnce(context.Background()))

	require.Len(t, publisher.published, 2)
	assert.Equal(t, first.RoutingKey, publisher.published[0].routingKey)
	assert.Equal(t, first.Payload, publisher.published[0].payload)
	assert.Equal(t, second.Payload, publisher.published[1].payload)

	for _, msg := range repo.All() {
		assert.True(t, msg.IsPublished())
	}

	unpublished, err := repo.GetUnpublished(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, unpublished)
}

func TestRelay_DrainOnce_PublishedMessagesAreNotRedelivered(t *testing.T) {
	repo := NewMemoryRepository()
	publisher := &capturingPublisher{}
	relay := NewRelay(repo, publisher, testRelayConfig(), nil)

	saveTestMessage(t, repo)

	require.NoError(t, relay.DrainOnce(context.Background()))
	require.NoError(t, relay.DrainOnce(context.Background()))

	assert.Len(t, publisher.published, 1)
}

func TestRelay_DrainOnce_FailureSchedulesRetry(t *testing.T) {
	repo := NewMemoryRepository()
	publisher := &failingPublisher{}
	relay := NewRelay(repo, publisher, testRelayConfig(), nil)

	saveTestMessage(t, repo)

	require.NoError(t, relay.DrainOnce(context.Background()))

	msgs := repo.All()
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, msgs[0].RetryCount)
	require.NotNil(t, msgs[0].LastError)
	assert.Equal(t, "broker unavailable", *msgs[0].LastError)
	require.NotNil(t, msgs[0].NextRetryAt)
	assert.Nil(t, msgs[0].DeadAt)
	assert.False(t, msgs[0].IsPublished())
}

func TestRelay_DrainOnce_DeadLettersAfterMaxRetries(t *testing.T) {
	repo := NewMemoryRepository()
	publisher := &failingPublisher{}
	relay := NewRelay(repo, publisher, testRelayConfig(), nil)

	saveTestMessage(t, repo)

	// MaxRetries is 2: the first failure schedules a retry, the second
	// dead-letters the message.
	require.NoError(t, relay.DrainOnce(context.Background()))
	require.NoError(t, relay.DrainOnce(context.Background()))

	msgs := repo.All()
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].DeadAt)
	require.NotNil(t, msgs[0].DeadReason)
	assert.Equal(t, "broker unavailable", *msgs[0].DeadReason)

	// Dead messages are no longer offered to the publisher.
	require.NoError(t, relay.DrainOnce(context.Background()))
	assert.Equal(t, 2, publisher.calls)

	unpublished, err := repo.GetUnpublished(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, unpublished)
}

func TestRelay_BackoffDoublesAndCaps(t *testing.T) {
	relay := NewRelay(NewMemoryRepository(), &capturingPublisher{}, RelayConfig{
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  10 * time.Second,
	}, nil)

	assert.Equal(t, time.Second, relay.backoff(1))
	assert.Equal(t, 2*time.Second, relay.backoff(2))
	assert.Equal(t, 4*time.Second, relay.backoff(3))
	assert.Equal(t, 8*time.Second, relay.backoff(4))
	assert.Equal(t, 10*time.Second, relay.backoff(5))
	assert.Equal(t, 10*time.Second, relay.backoff(6))
}
