package pool

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sinas-io/burrow/pkg/events"
	"github.com/sinas-io/burrow/pkg/log"
	"github.com/sinas-io/burrow/pkg/metrics"
	"github.com/sinas-io/burrow/pkg/types"
)

// Reconciler periodically probes registered workers and reports drift.
// It does not heal the pool: a missing worker stays registered until an
// operator scales, but it is flagged, counted, and published as an event.
type Reconciler struct {
	pool     *Manager
	interval time.Duration

	mu      sync.Mutex
	missing map[string]bool
	stopCh  chan struct{}
}

// NewReconciler creates a reconciler for the given pool
func NewReconciler(pool *Manager, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reconciler{
		pool:     pool,
		interval: interval,
		missing:  make(map[string]bool),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reconcile(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context) {
	logger := log.WithComponent("reconciler")
	metrics.ReconciliationCyclesTotal.Inc()

	infos := r.pool.ListWorkers(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	missingNow := 0
	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.ID] = true
		if info.Status != types.WorkerMissing {
			delete(r.missing, info.ID)
			continue
		}
		missingNow++
		if r.missing[info.ID] {
			continue
		}
		// Newly detected drift.
		r.missing[info.ID] = true
		logger.Warn().
			Str("worker_id", info.ID).
			Str("container", info.ContainerName).
			Msg("worker container is missing, scale down to reconcile")
		if r.pool.broker != nil {
			r.pool.broker.Publish(&events.Event{
				ID:   uuid.NewString(),
				Type: events.EventWorkerMissing,
				Metadata: map[string]string{
					"worker_id": info.ID,
					"container": info.ContainerName,
				},
			})
		}
	}

	// Forget workers that were scaled away.
	for id := range r.missing {
		if !seen[id] {
			delete(r.missing, id)
		}
	}

	metrics.WorkersTotal.Set(float64(len(infos)))
	metrics.WorkersMissing.Set(float64(missingNow))
}
