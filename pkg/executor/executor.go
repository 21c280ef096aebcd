package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sinas-io/burrow/pkg/log"
	"github.com/sinas-io/burrow/pkg/protocol"
	"github.com/sinas-io/burrow/pkg/types"
)

// DefaultPollInterval is how often the executor checks for a trigger marker
const DefaultPollInterval = 100 * time.Millisecond

// Executor is the long-running guest-side loop inside a worker container.
// It polls for trigger markers, runs function code, and writes results.
// At most one execution is in flight at a time; the next trigger is not
// served until the current result has been written.
type Executor struct {
	dir      string
	interval time.Duration
	logger   zerolog.Logger

	engine *engine
}

// Option configures an Executor
type Option func(*Executor)

// WithPollInterval overrides the trigger polling interval
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) { e.interval = d }
}

// New creates an executor that serves protocol files under dir
func New(dir string, opts ...Option) *Executor {
	if dir == "" {
		dir = protocol.DefaultDir
	}
	e := &Executor{
		dir:      dir,
		interval: DefaultPollInterval,
		logger:   log.WithComponent("executor"),
		engine:   newEngine(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run is the executor main loop. It returns only when ctx is cancelled;
// execution errors are reported through result files, never by exiting.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info().Str("dir", e.dir).Msg("container executor started")

	e.loadInitialFunctions()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("executor shutting down")
			return ctx.Err()
		case <-ticker.C:
		}

		if err := e.serveOne(); err != nil {
			// Never let a bad request terminate the loop.
			e.logger.Error().Err(err).Msg("error in executor loop")
		}
	}
}

// loadInitialFunctions preloads functions.json if the image shipped one.
// Workers assigned a fixed function set use this instead of inline code.
func (e *Executor) loadInitialFunctions() {
	data, err := os.ReadFile(protocol.FunctionsPath(e.dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			e.logger.Info().Msg("no initial functions to load")
		} else {
			e.logger.Error().Err(err).Msg("error reading initial functions")
		}
		return
	}

	req, err := protocol.DecodeRequest(data)
	if err != nil {
		e.logger.Error().Err(err).Msg("error parsing initial functions")
		return
	}
	if req.Action != protocol.ActionLoadFunctions {
		return
	}
	e.loadBatch(req.Functions)
}

// serveOne handles at most one pending request. No trigger, or a trigger
// without a request file, means no work.
func (e *Executor) serveOne() error {
	if _, err := os.Stat(protocol.TriggerPath(e.dir)); err != nil {
		return nil
	}

	data, err := os.ReadFile(protocol.RequestPath(e.dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read request: %w", err)
	}

	req, err := protocol.DecodeRequest(data)
	if err != nil {
		return err
	}

	// A result the host abandoned must not linger into this cycle.
	_ = os.Remove(protocol.ResultPath(e.dir))

	var result *types.ExecutionResult
	switch req.Action {
	case protocol.ActionExecute:
		result = e.executeLoaded(req)
	case protocol.ActionExecuteInline:
		result = e.executeInline(req)
	case protocol.ActionLoadFunctions:
		e.loadBatch(req.Functions)
		result = &types.ExecutionResult{
			Status:      types.ExecutionLoaded,
			ExecutionID: req.ExecutionID,
		}
	default:
		result = &types.ExecutionResult{
			Status:      types.ExecutionFailed,
			Error:       fmt.Sprintf("unknown action %q", req.Action),
			ExecutionID: req.ExecutionID,
		}
	}

	if err := e.writeResult(result); err != nil {
		return err
	}

	// Clearing the request marks this cycle done; the host clears the
	// trigger and result after reading.
	if err := os.Remove(protocol.RequestPath(e.dir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear request: %w", err)
	}
	return nil
}

// writeResult publishes a result atomically so the host never reads a
// partially written file
func (e *Executor) writeResult(result *types.ExecutionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	tmp := protocol.ResultPath(e.dir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := os.Rename(tmp, protocol.ResultPath(e.dir)); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}

// loadBatch compiles a batch of functions into the persistent namespace
func (e *Executor) loadBatch(batch map[string]map[string]protocol.FunctionDef) {
	for namespace, fns := range batch {
		for name, def := range fns {
			key := namespace + "/" + name
			if err := e.engine.Load(key, name, def.Code); err != nil {
				e.logger.Error().Err(err).Str("function", key).Msg("error loading function")
				continue
			}
			e.logger.Info().Str("function", key).Msg("loaded function")
		}
	}
}

// executeLoaded invokes a function previously compiled into the
// persistent namespace
func (e *Executor) executeLoaded(req *protocol.Request) *types.ExecutionResult {
	namespace := req.FunctionNamespace
	if namespace == "" {
		namespace = "default"
	}
	key := namespace + "/" + req.FunctionName

	value, duration, err := e.engine.CallLoaded(key, req.InputData, req.Context)
	return e.buildResult(req, value, duration, err)
}

// executeInline compiles the request's source into a fresh namespace and
// invokes it. Nothing is cached across inline calls.
func (e *Executor) executeInline(req *protocol.Request) *types.ExecutionResult {
	value, duration, err := e.engine.CallInline(req.FunctionName, req.FunctionCode, req.InputData, req.Context)
	return e.buildResult(req, value, duration, err)
}

func (e *Executor) buildResult(req *protocol.Request, value any, duration time.Duration, err error) *types.ExecutionResult {
	if err != nil {
		return &types.ExecutionResult{
			Status:      types.ExecutionFailed,
			Error:       errorMessage(err),
			Traceback:   errorTraceback(err),
			ExecutionID: req.ExecutionID,
		}
	}
	return &types.ExecutionResult{
		Status:      types.ExecutionCompleted,
		Result:      value,
		ExecutionID: req.ExecutionID,
		DurationMS:  duration.Milliseconds(),
	}
}
