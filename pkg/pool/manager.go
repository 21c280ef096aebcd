package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sinas-io/burrow/pkg/events"
	"github.com/sinas-io/burrow/pkg/functions"
	"github.com/sinas-io/burrow/pkg/log"
	"github.com/sinas-io/burrow/pkg/metrics"
	"github.com/sinas-io/burrow/pkg/protocol"
	"github.com/sinas-io/burrow/pkg/runtime"
	"github.com/sinas-io/burrow/pkg/types"
)

// ErrNoWorkers is returned (as a failed result) when the pool is empty
var ErrNoWorkers = errors.New("no workers available, scale the pool up first")

// ContainerRuntime is what the pool needs from the container layer.
// *runtime.ContainerdRuntime implements it; tests use a fake.
type ContainerRuntime interface {
	PullImage(ctx context.Context, imageRef string) error
	CreateWorker(ctx context.Context, name, imageRef string, res types.WorkerResources, env []string) (string, error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeout time.Duration) error
	DeleteContainer(ctx context.Context, containerID string) error
	ContainerStatus(ctx context.Context, containerID string) (types.WorkerStatus, error)
	ListWorkers(ctx context.Context, prefix string) ([]runtime.ContainerSummary, error)
	Files(containerID string) protocol.Transport
}

// Config holds pool manager configuration
type Config struct {
	Image           string
	Prefix          string
	DefaultCount    int
	FunctionTimeout time.Duration
	PollInterval    time.Duration
	Resources       types.WorkerResources

	// ReadyAttempts and ReadyDelay bound the readiness probe after a
	// worker container starts.
	ReadyAttempts uint
	ReadyDelay    time.Duration
}

// Manager owns the mapping from logical worker slot to physical container
// and mediates every execution call.
//
// The worker set, registration order, and round-robin cursor are guarded by
// one mutex. The lock covers selection, registration, and counter updates
// only; the blocking poll phase of a call runs outside it so concurrent
// executions proceed against distinct workers.
type Manager struct {
	cfg       Config
	runtime   ContainerRuntime
	directory functions.Directory
	broker    *events.Broker
	logger    zerolog.Logger

	mu          sync.Mutex
	workers     map[string]*types.Worker
	order       []string // registration order; shrink evicts from the tail
	cursor      int
	nextNum     int
	initialized bool
}

// NewManager creates a pool manager. The broker may be nil.
func NewManager(cfg Config, rt ContainerRuntime, dir functions.Directory, broker *events.Broker) *Manager {
	if cfg.ReadyAttempts == 0 {
		cfg.ReadyAttempts = 20
	}
	if cfg.ReadyDelay == 0 {
		cfg.ReadyDelay = 250 * time.Millisecond
	}
	return &Manager{
		cfg:       cfg,
		runtime:   rt,
		directory: dir,
		broker:    broker,
		logger:    log.WithComponent("pool"),
		workers:   make(map[string]*types.Worker),
		nextNum:   1,
	}
}

// Initialize rediscovers containers matching the pool's naming convention,
// registers them with a zeroed execution counter, then scales up to the
// configured default count. Safe to call more than once; only the first
// call does work. This makes the pool survive host-process restarts
// without a container re-creation storm.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}

	summaries, err := m.runtime.ListWorkers(ctx, m.cfg.Prefix)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to discover existing workers: %w", err)
	}

	// Registration order follows container numbering so restarts keep a
	// stable eviction order.
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })

	for _, s := range summaries {
		num, ok := parseWorkerNum(s.ID, m.cfg.Prefix)
		if !ok {
			m.logger.Warn().Str("container", s.ID).Msg("skipping container with unparseable worker name")
			continue
		}
		w := &types.Worker{
			ID:            workerID(num),
			ContainerName: s.ID,
			ContainerID:   s.ID,
			CreatedAt:     s.CreatedAt,
			Executions:    0, // counters are not persisted across restarts
		}
		m.register(w)
		if num >= m.nextNum {
			m.nextNum = num + 1
		}
		m.logger.Info().Str("worker_id", w.ID).Str("container", s.ID).Msg("rediscovered worker")
		m.publish(events.EventWorkerRediscovered, w.ID, s.ID)
	}

	discovered := len(m.order)
	m.initialized = true
	m.mu.Unlock()

	if discovered < m.cfg.DefaultCount {
		m.logger.Info().Int("target", m.cfg.DefaultCount).Msg("scaling to default worker count")
		if _, err := m.Scale(ctx, m.cfg.DefaultCount); err != nil {
			return err
		}
	}

	m.logger.Info().Int("workers", m.WorkerCount()).Msg("worker pool initialized")
	return nil
}

// Scale grows or shrinks the pool to target. Individual creation or removal
// failures are logged and skipped rather than aborting the operation, so a
// partial scale is possible and reflected in the report. The whole operation
// holds the pool lock, so concurrent scales cannot race on the worker set.
func (m *Manager) Scale(ctx context.Context, target int) (*types.ScaleReport, error) {
	if target < 0 {
		return nil, fmt.Errorf("target count must be >= 0, got %d", target)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := len(m.order)

	switch {
	case target > current:
		added := 0
		for i := 0; i < target-current; i++ {
			if err := m.createWorkerLocked(ctx); err != nil {
				m.logger.Error().Err(err).Msg("failed to create worker")
				continue
			}
			added++
		}
		m.syncGaugeLocked()
		return &types.ScaleReport{
			Action:        types.ScaleUp,
			PreviousCount: current,
			CurrentCount:  len(m.order),
			Added:         added,
		}, nil

	case target < current:
		removed := 0
		victims := append([]string(nil), m.order[target:]...)
		for _, id := range victims {
			if err := m.removeWorkerLocked(ctx, id); err != nil {
				m.logger.Error().Err(err).Str("worker_id", id).Msg("failed to remove worker")
				continue
			}
			removed++
		}
		m.syncGaugeLocked()
		return &types.ScaleReport{
			Action:        types.ScaleDown,
			PreviousCount: current,
			CurrentCount:  len(m.order),
			Removed:       removed,
		}, nil

	default:
		return &types.ScaleReport{
			Action:        types.ScaleNoChange,
			PreviousCount: current,
			CurrentCount:  current,
		}, nil
	}
}

// ListWorkers probes the runtime for each registered worker's live status.
// A worker whose container no longer resolves is reported as missing, never
// silently dropped; callers reconcile missing workers by scaling.
func (m *Manager) ListWorkers(ctx context.Context) []types.WorkerInfo {
	m.mu.Lock()
	snapshot := make([]*types.Worker, 0, len(m.order))
	for _, id := range m.order {
		w := *m.workers[id]
		snapshot = append(snapshot, &w)
	}
	m.mu.Unlock()

	infos := make([]types.WorkerInfo, 0, len(snapshot))
	for _, w := range snapshot {
		status, err := m.runtime.ContainerStatus(ctx, w.ContainerName)
		if err != nil {
			status = types.WorkerMissing
		}
		infos = append(infos, types.WorkerInfo{
			ID:            w.ID,
			ContainerName: w.ContainerName,
			Status:        status,
			CreatedAt:     w.CreatedAt,
			Executions:    w.Executions,
		})
	}
	return infos
}

// WorkerCount returns the current number of registered workers
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// createWorkerLocked creates, starts, and registers one worker.
// Callers must hold m.mu.
func (m *Manager) createWorkerLocked(ctx context.Context) error {
	num := m.nextNum
	name := m.cfg.Prefix + strconv.Itoa(num)

	env := []string{
		"WORKER_MODE=true",
		"WORKER_ID=" + workerID(num),
	}

	containerID, err := m.runtime.CreateWorker(ctx, name, m.cfg.Image, m.cfg.Resources, env)
	if err != nil {
		return fmt.Errorf("failed to create worker %s: %w", name, err)
	}

	if err := m.runtime.StartContainer(ctx, containerID); err != nil {
		// Leave no half-created container behind.
		if derr := m.runtime.DeleteContainer(ctx, containerID); derr != nil {
			m.logger.Warn().Err(derr).Str("container", containerID).Msg("failed to clean up unstartable worker")
		}
		return fmt.Errorf("failed to start worker %s: %w", name, err)
	}

	if err := m.waitReady(ctx, containerID); err != nil {
		m.logger.Warn().Err(err).Str("container", containerID).Msg("worker did not become ready in time")
	}

	m.nextNum++
	w := &types.Worker{
		ID:            workerID(num),
		ContainerName: name,
		ContainerID:   containerID,
		CreatedAt:     time.Now().UTC(),
	}
	m.register(w)

	metrics.WorkersCreated.Inc()
	m.logger.Info().Str("worker_id", w.ID).Str("container", name).Msg("created worker")
	m.publish(events.EventWorkerCreated, w.ID, name)
	return nil
}

// removeWorkerLocked stops, deletes, and deregisters one worker.
// A container that is already gone still deregisters cleanly.
// Callers must hold m.mu.
func (m *Manager) removeWorkerLocked(ctx context.Context, id string) error {
	w, ok := m.workers[id]
	if !ok {
		return fmt.Errorf("unknown worker %s", id)
	}

	if err := m.runtime.StopContainer(ctx, w.ContainerName, 10*time.Second); err != nil {
		m.logger.Warn().Err(err).Str("worker_id", id).Msg("failed to stop worker container")
	}
	if err := m.runtime.DeleteContainer(ctx, w.ContainerName); err != nil {
		return fmt.Errorf("failed to delete worker container %s: %w", w.ContainerName, err)
	}

	m.deregister(id)
	metrics.WorkersRemoved.Inc()
	m.logger.Info().Str("worker_id", id).Str("container", w.ContainerName).Msg("removed worker")
	m.publish(events.EventWorkerRemoved, id, w.ContainerName)
	return nil
}

// waitReady waits until the worker's executor answers exec probes
func (m *Manager) waitReady(ctx context.Context, containerID string) error {
	transport := m.runtime.Files(containerID)
	return retry.Do(
		func() error {
			status, err := m.runtime.ContainerStatus(ctx, containerID)
			if err != nil {
				return err
			}
			if status != types.WorkerRunning {
				return fmt.Errorf("container %s not running yet (%s)", containerID, status)
			}
			// The tmpfs existing proves exec into the container works.
			exists, err := transport.FileExists(ctx, protocol.DefaultDir)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("protocol directory %s not mounted in %s yet", protocol.DefaultDir, containerID)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(m.cfg.ReadyAttempts),
		retry.Delay(m.cfg.ReadyDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// register adds a worker to the set. Callers must hold m.mu.
func (m *Manager) register(w *types.Worker) {
	m.workers[w.ID] = w
	m.order = append(m.order, w.ID)
}

// deregister removes a worker and keeps the cursor within bounds.
// Callers must hold m.mu.
func (m *Manager) deregister(id string) {
	delete(m.workers, id)
	for i, wid := range m.order {
		if wid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if len(m.order) > 0 {
		m.cursor %= len(m.order)
	} else {
		m.cursor = 0
	}
}

func (m *Manager) syncGaugeLocked() {
	metrics.WorkersTotal.Set(float64(len(m.order)))
}

func (m *Manager) publish(t events.EventType, workerID, container string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{
		ID:   uuid.NewString(),
		Type: t,
		Metadata: map[string]string{
			"worker_id": workerID,
			"container": container,
		},
	})
}

func workerID(num int) string {
	return "worker-" + strconv.Itoa(num)
}

// parseWorkerNum extracts the numeric suffix from a container name like
// "burrow-worker-3"
func parseWorkerNum(containerName, prefix string) (int, bool) {
	suffix := strings.TrimPrefix(containerName, prefix)
	if suffix == containerName {
		return 0, false
	}
	num, err := strconv.Atoi(suffix)
	if err != nil || num < 1 {
		return 0, false
	}
	return num, true
}
