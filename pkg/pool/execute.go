package pool

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sinas-io/burrow/pkg/events"
	"github.com/sinas-io/burrow/pkg/metrics"
	"github.com/sinas-io/burrow/pkg/protocol"
	"github.com/sinas-io/burrow/pkg/types"
)

// ExecuteParams carries one execution call into the pool
type ExecuteParams struct {
	FunctionNamespace string
	FunctionName      string
	InputData         map[string]any
	ExecutionID       string
	EnabledNamespaces []string
	Context           types.ExecutionContext
}

// Execute runs a function on the next worker in round-robin order.
//
// Every failure mode is converted to a failed or timeout result here:
// callers always receive a result object with a status field, never a
// raised error. Execution failures are data, not control flow.
func (m *Manager) Execute(ctx context.Context, p ExecuteParams) *types.ExecutionResult {
	executionID := p.ExecutionID
	if executionID == "" {
		executionID = uuid.NewString()
	}
	logger := m.logger.With().
		Str("execution_id", executionID).
		Str("function", p.FunctionNamespace+"/"+p.FunctionName).
		Logger()

	// Selection happens under the pool lock so a concurrent scale cannot
	// hand us a worker that is being removed; the poll wait below runs off
	// the lock.
	m.mu.Lock()
	if len(m.order) == 0 {
		m.mu.Unlock()
		logger.Warn().Msg("execute called on empty pool")
		return failedResult(executionID, ErrNoWorkers.Error())
	}
	workerID := m.order[m.cursor%len(m.order)]
	m.cursor++
	worker := m.workers[workerID]
	containerName := worker.ContainerName
	m.mu.Unlock()

	fn, err := m.directory.Resolve(p.FunctionNamespace, p.FunctionName)
	if err != nil {
		logger.Warn().Err(err).Msg("function lookup failed")
		return failedResult(executionID,
			"function "+p.FunctionNamespace+"/"+p.FunctionName+": "+err.Error())
	}

	p.Context.ExecutionID = executionID
	req := &protocol.Request{
		Action:            protocol.ActionExecuteInline,
		ExecutionID:       executionID,
		FunctionNamespace: p.FunctionNamespace,
		FunctionName:      p.FunctionName,
		FunctionCode:      fn.Code,
		InputData:         p.InputData,
		Context:           &p.Context,
		EnabledNamespaces: p.EnabledNamespaces,
	}

	driver := protocol.NewDriver(m.cfg.FunctionTimeout, m.cfg.PollInterval)
	start := time.Now()
	result, err := driver.Run(ctx, m.runtime.Files(containerName), req)
	elapsed := time.Since(start)

	if err != nil {
		// Infrastructure failure: container gone, exec refused, bad wire
		// data. Still a result, not an exception.
		logger.Error().Err(err).Str("worker_id", workerID).Msg("worker execution failed")
		metrics.ExecutionsTotal.WithLabelValues(string(types.ExecutionFailed)).Inc()
		m.publishExecution(events.EventExecutionFailed, executionID, workerID)
		return failedResult(executionID, "worker execution failed: "+err.Error())
	}

	if result.ExecutionID == "" {
		result.ExecutionID = executionID
	}

	metrics.ExecutionsTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.ExecutionDuration.Observe(elapsed.Seconds())

	switch result.Status {
	case types.ExecutionTimeout:
		logger.Warn().Str("worker_id", workerID).Msg("execution timed out")
		m.publishExecution(events.EventExecutionTimeout, executionID, workerID)
	case types.ExecutionFailed:
		logger.Info().Str("worker_id", workerID).Str("error", result.Error).Msg("execution failed")
		m.publishExecution(events.EventExecutionFailed, executionID, workerID)
		m.countExecution(workerID)
	default:
		logger.Info().Str("worker_id", workerID).Int64("duration_ms", result.DurationMS).Msg("execution completed")
		m.publishExecution(events.EventExecutionCompleted, executionID, workerID)
		m.countExecution(workerID)
	}

	return result
}

// LoadReport summarizes a batch preload across the pool
type LoadReport struct {
	Functions int      `json:"functions"`
	Workers   int      `json:"workers"`
	Errors    []string `json:"errors,omitempty"`
}

// LoadFunctions compiles every active shared-pool function of the given
// namespaces (all namespaces when none are given) into every worker's
// persistent namespace, for pools serving a fixed, known function set.
func (m *Manager) LoadFunctions(ctx context.Context, namespaces []string) (*LoadReport, error) {
	batch, count, err := m.buildBatch(namespaces)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	containers := make([]string, 0, len(m.order))
	for _, id := range m.order {
		containers = append(containers, m.workers[id].ContainerName)
	}
	m.mu.Unlock()

	report := &LoadReport{Functions: count}
	driver := protocol.NewDriver(m.cfg.FunctionTimeout, m.cfg.PollInterval)

	for _, containerName := range containers {
		req := &protocol.Request{
			Action:      protocol.ActionLoadFunctions,
			ExecutionID: uuid.NewString(),
			Functions:   batch,
		}
		result, err := driver.Run(ctx, m.runtime.Files(containerName), req)
		if err != nil {
			report.Errors = append(report.Errors, containerName+": "+err.Error())
			continue
		}
		if result.Status != types.ExecutionLoaded {
			report.Errors = append(report.Errors, containerName+": unexpected status "+string(result.Status))
			continue
		}
		report.Workers++
	}

	if m.broker != nil && report.Workers > 0 {
		m.broker.Publish(&events.Event{
			ID:   uuid.NewString(),
			Type: events.EventFunctionsLoaded,
		})
	}
	return report, nil
}

func (m *Manager) buildBatch(namespaces []string) (map[string]map[string]protocol.FunctionDef, int, error) {
	var fns []*types.FunctionSource
	var err error

	if len(namespaces) == 0 {
		fns, err = m.directory.List()
		if err != nil {
			return nil, 0, err
		}
	} else {
		for _, ns := range namespaces {
			nsFns, err := m.directory.ListNamespace(ns)
			if err != nil {
				return nil, 0, err
			}
			fns = append(fns, nsFns...)
		}
	}

	batch := make(map[string]map[string]protocol.FunctionDef)
	count := 0
	for _, fn := range fns {
		if !fn.IsActive || !fn.SharedPool {
			continue
		}
		if batch[fn.Namespace] == nil {
			batch[fn.Namespace] = make(map[string]protocol.FunctionDef)
		}
		batch[fn.Namespace][fn.Name] = protocol.FunctionDef{Code: fn.Code}
		count++
	}
	return batch, count, nil
}

// countExecution increments a worker's completed-call counter. The worker
// may have been scaled away while the call was in flight.
func (m *Manager) countExecution(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.workers[workerID]; ok {
		w.Executions++
	}
}

func (m *Manager) publishExecution(t events.EventType, executionID, workerID string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{
		ID:   uuid.NewString(),
		Type: t,
		Metadata: map[string]string{
			"execution_id": executionID,
			"worker_id":    workerID,
		},
	})
}

func failedResult(executionID, msg string) *types.ExecutionResult {
	return &types.ExecutionResult{
		Status:      types.ExecutionFailed,
		Error:       msg,
		ExecutionID: executionID,
	}
}
