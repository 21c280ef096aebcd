package protocol

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinas-io/burrow/pkg/types"
)

// memTransport is an in-memory Transport. Results queued in pending are
// published one at a time: the first when the trigger is written, each
// subsequent one the moment the previous result is read. The latter mimics
// the executor renaming a fresh result into place right as the driver
// inspects the old file, the tightest interleaving the protocol allows.
type memTransport struct {
	mu      sync.Mutex
	files   map[string][]byte
	pending [][]byte
}

func newMemTransport(pending ...[]byte) *memTransport {
	return &memTransport{
		files:   make(map[string][]byte),
		pending: pending,
	}
}

func (m *memTransport) WriteFile(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
	if path == TriggerPath(DefaultDir) {
		m.publishNextLocked()
	}
	return nil
}

func (m *memTransport) ReadFile(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.files[path]
	if path == ResultPath(DefaultDir) {
		m.publishNextLocked()
	}
	return data, nil
}

func (m *memTransport) RemoveFile(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *memTransport) FileExists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok, nil
}

func (m *memTransport) publishNextLocked() {
	if len(m.pending) == 0 {
		return
	}
	m.files[ResultPath(DefaultDir)] = m.pending[0]
	m.pending = m.pending[1:]
}

func (m *memTransport) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func encodeResult(t *testing.T, res *types.ExecutionResult) []byte {
	t.Helper()
	data, err := json.Marshal(res)
	require.NoError(t, err)
	return data
}

// TestDriverRunSuccess verifies the full request/trigger/result cycle and
// that the driver cleans up the protocol files afterwards
func TestDriverRunSuccess(t *testing.T) {
	transport := newMemTransport(encodeResult(t, &types.ExecutionResult{
		Status:      types.ExecutionCompleted,
		Result:      "ok",
		ExecutionID: "e-1",
	}))

	driver := NewDriver(time.Second, 5*time.Millisecond)
	res, err := driver.Run(context.Background(), transport, &Request{
		Action:      ActionExecuteInline,
		ExecutionID: "e-1",
	})
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionCompleted, res.Status)
	assert.Equal(t, "ok", res.Result)

	// Result and trigger are cleaned up; the executor clears the request.
	assert.False(t, transport.has(ResultPath(DefaultDir)))
	assert.False(t, transport.has(TriggerPath(DefaultDir)))
}

// TestDriverRunTimeout verifies a silent worker yields a synthetic timeout
// result rather than an error
func TestDriverRunTimeout(t *testing.T) {
	transport := newMemTransport() // never answers

	driver := NewDriver(50*time.Millisecond, 5*time.Millisecond)
	res, err := driver.Run(context.Background(), transport, &Request{
		Action:      ActionExecuteInline,
		ExecutionID: "e-2",
	})
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionTimeout, res.Status)
	assert.Equal(t, "e-2", res.ExecutionID)
	assert.Contains(t, res.Error, "timed out")
}

// TestDriverIgnoresStaleResult verifies a leftover result from an earlier
// abandoned call is skipped and polling continues to the genuine result,
// even when the executor replaces the file the instant the stale copy is
// read. Deleting the stale file instead would destroy the genuine result
// here and turn the call into a spurious timeout.
func TestDriverIgnoresStaleResult(t *testing.T) {
	stale := encodeResult(t, &types.ExecutionResult{
		Status:      types.ExecutionCompleted,
		Result:      "old answer",
		ExecutionID: "earlier-call",
	})
	genuine := encodeResult(t, &types.ExecutionResult{
		Status:      types.ExecutionCompleted,
		Result:      "new answer",
		ExecutionID: "e-3",
	})
	transport := newMemTransport(stale, genuine)

	driver := NewDriver(time.Second, 5*time.Millisecond)
	res, err := driver.Run(context.Background(), transport, &Request{
		Action:      ActionExecuteInline,
		ExecutionID: "e-3",
	})
	require.NoError(t, err)

	assert.Equal(t, "e-3", res.ExecutionID)
	assert.Equal(t, "new answer", res.Result)
	assert.Equal(t, types.ExecutionCompleted, res.Status)
}

// TestDriverContextCancel verifies cancellation is surfaced as an error
func TestDriverContextCancel(t *testing.T) {
	transport := newMemTransport()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	driver := NewDriver(time.Minute, 5*time.Millisecond)
	_, err := driver.Run(ctx, transport, &Request{ExecutionID: "e-4"})
	assert.ErrorIs(t, err, context.Canceled)
}
