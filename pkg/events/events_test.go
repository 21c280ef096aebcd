package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPublishSubscribe verifies events reach every subscriber
func TestPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{
		ID:   "ev-1",
		Type: EventWorkerCreated,
		Metadata: map[string]string{
			"worker_id": "worker-1",
		},
	})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			assert.Equal(t, EventWorkerCreated, ev.Type)
			assert.Equal(t, "worker-1", ev.Metadata["worker_id"])
			assert.False(t, ev.Timestamp.IsZero(), "timestamp should be stamped on publish")
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

// TestUnsubscribe verifies removed subscribers stop receiving events
func TestUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	// The channel is closed on unsubscribe.
	_, open := <-sub
	assert.False(t, open)
}

// TestSlowSubscriberDoesNotBlock verifies a full subscriber buffer drops
// events instead of stalling the broker
func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	slow := b.Subscribe()
	fast := b.Subscribe()

	// Overflow the slow subscriber's buffer without draining it.
	for i := 0; i < 120; i++ {
		b.Publish(&Event{ID: "flood", Type: EventExecutionCompleted})
	}

	require.Eventually(t, func() bool {
		return len(fast) > 0
	}, time.Second, 10*time.Millisecond, "fast subscriber should keep receiving")

	assert.LessOrEqual(t, len(slow), cap(slow))
}
