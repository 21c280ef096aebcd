package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinas-io/burrow/pkg/events"
)

// TestReconcileFlagsMissingWorkerOnce verifies drift is published as an
// event on first detection only
func TestReconcileFlagsMissingWorkerOnce(t *testing.T) {
	rt := newFakeRuntime()
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	m := NewManager(Config{
		Image:           "executor:test",
		Prefix:          "test-worker-",
		DefaultCount:    2,
		FunctionTimeout: time.Second,
		PollInterval:    5 * time.Millisecond,
		ReadyAttempts:   2,
		ReadyDelay:      time.Millisecond,
	}, rt, newFakeDirectory(), broker)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))

	r := NewReconciler(m, time.Second)

	rt.mu.Lock()
	delete(rt.containers, "test-worker-2")
	rt.mu.Unlock()

	r.reconcile(ctx)
	r.reconcile(ctx) // already known, no second event

	missingEvents := 0
	deadline := time.After(time.Second)
	for missingEvents == 0 {
		select {
		case ev := <-sub:
			if ev.Type == events.EventWorkerMissing {
				missingEvents++
				assert.Equal(t, "test-worker-2", ev.Metadata["container"])
			}
		case <-deadline:
			t.Fatal("no worker.missing event received")
		}
	}

	// Drain; a duplicate for the same worker would be a bug.
	drain := time.After(100 * time.Millisecond)
	for {
		select {
		case ev := <-sub:
			assert.NotEqual(t, events.EventWorkerMissing, ev.Type)
		case <-drain:
			assert.Equal(t, 1, missingEvents)
			return
		}
	}
}

// TestReconcileForgetsScaledAwayWorkers verifies a worker removed by scaling
// clears from the missing set so its id can be flagged again if reused
func TestReconcileForgetsScaledAwayWorkers(t *testing.T) {
	rt := newFakeRuntime()
	m := testManager(t, rt, 2)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))

	r := NewReconciler(m, time.Second)

	rt.mu.Lock()
	delete(rt.containers, "test-worker-2")
	rt.mu.Unlock()

	r.reconcile(ctx)
	r.mu.Lock()
	assert.True(t, r.missing["worker-2"])
	r.mu.Unlock()

	// Scaling down deregisters the missing worker.
	_, err := m.Scale(ctx, 1)
	require.NoError(t, err)

	r.reconcile(ctx)
	r.mu.Lock()
	assert.Empty(t, r.missing)
	r.mu.Unlock()
}
