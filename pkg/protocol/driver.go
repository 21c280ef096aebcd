package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/sinas-io/burrow/pkg/log"
	"github.com/sinas-io/burrow/pkg/types"
)

// Transport moves bytes in and out of a worker's filesystem. The containerd
// runtime implements it with exec-based file operations; tests use local
// files or in-memory maps.
type Transport interface {
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	RemoveFile(ctx context.Context, path string) error
	FileExists(ctx context.Context, path string) (bool, error)
}

// Driver runs the host side of the execution protocol: write request,
// write trigger, poll for the result file up to the configured timeout.
type Driver struct {
	Dir          string
	Timeout      time.Duration
	PollInterval time.Duration
}

// NewDriver creates a driver with the given timeout and poll interval
func NewDriver(timeout, pollInterval time.Duration) *Driver {
	return &Driver{
		Dir:          DefaultDir,
		Timeout:      timeout,
		PollInterval: pollInterval,
	}
}

// Run drives one request through a worker and returns its result.
//
// A missing result at the deadline yields a synthetic timeout result, not an
// error; the in-flight execution is abandoned, never cancelled. Results whose
// execution id does not match the request are stale leftovers from an earlier
// abandoned call; they are ignored and polling continues until the executor
// replaces them. Transport failures are returned as errors for the caller to
// convert.
func (d *Driver) Run(ctx context.Context, t Transport, req *Request) (*types.ExecutionResult, error) {
	logger := log.WithExecutionID(req.ExecutionID)

	data, err := req.Encode()
	if err != nil {
		return nil, err
	}

	if err := t.WriteFile(ctx, RequestPath(d.Dir), data); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}
	if err := t.WriteFile(ctx, TriggerPath(d.Dir), []byte("1")); err != nil {
		return nil, fmt.Errorf("failed to write trigger: %w", err)
	}

	deadline := time.Now().Add(d.Timeout)
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			logger.Warn().Dur("timeout", d.Timeout).Msg("no result before deadline, abandoning call")
			return &types.ExecutionResult{
				Status:      types.ExecutionTimeout,
				Error:       fmt.Sprintf("execution timed out after %s", d.Timeout),
				ExecutionID: req.ExecutionID,
			}, nil
		}

		exists, err := t.FileExists(ctx, ResultPath(d.Dir))
		if err != nil {
			return nil, fmt.Errorf("failed to check result file: %w", err)
		}
		if !exists {
			continue
		}

		raw, err := t.ReadFile(ctx, ResultPath(d.Dir))
		if err != nil {
			return nil, fmt.Errorf("failed to read result: %w", err)
		}

		res, err := DecodeResult(raw)
		if err != nil {
			return nil, err
		}

		// A result left behind by an earlier timed-out call must not be
		// mistaken for ours. Deleting it here could race the executor's
		// rename and destroy the genuine result; the executor clears stale
		// results itself and replaces them atomically, so just keep waiting.
		if req.ExecutionID != "" && res.ExecutionID != "" && res.ExecutionID != req.ExecutionID {
			logger.Warn().Str("stale_execution_id", res.ExecutionID).Msg("ignoring stale result")
			continue
		}

		if err := t.RemoveFile(ctx, ResultPath(d.Dir)); err != nil {
			logger.Warn().Err(err).Msg("failed to clean up result file")
		}
		if err := t.RemoveFile(ctx, TriggerPath(d.Dir)); err != nil {
			logger.Warn().Err(err).Msg("failed to clean up trigger file")
		}

		return res, nil
	}
}
