package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinas-io/burrow/pkg/functions"
	"github.com/sinas-io/burrow/pkg/pool"
	"github.com/sinas-io/burrow/pkg/types"
)

// fakePool records calls and returns canned answers
type fakePool struct {
	lastExecute pool.ExecuteParams
	lastScale   int

	executeResult *types.ExecutionResult
	scaleReport   *types.ScaleReport
	scaleErr      error
	workers       []types.WorkerInfo
	loadReport    *pool.LoadReport
}

func (f *fakePool) Execute(_ context.Context, p pool.ExecuteParams) *types.ExecutionResult {
	f.lastExecute = p
	return f.executeResult
}

func (f *fakePool) Scale(_ context.Context, target int) (*types.ScaleReport, error) {
	f.lastScale = target
	return f.scaleReport, f.scaleErr
}

func (f *fakePool) ListWorkers(context.Context) []types.WorkerInfo {
	return f.workers
}

func (f *fakePool) LoadFunctions(context.Context, []string) (*pool.LoadReport, error) {
	return f.loadReport, nil
}

// fakeDirectory is a minimal in-memory functions.Directory
type fakeDirectory struct {
	fns map[string]*types.FunctionSource
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{fns: make(map[string]*types.FunctionSource)}
}

func (d *fakeDirectory) Put(fn *types.FunctionSource) error {
	d.fns[fn.Key()] = fn
	return nil
}

func (d *fakeDirectory) Get(namespace, name string) (*types.FunctionSource, error) {
	fn, ok := d.fns[namespace+"/"+name]
	if !ok {
		return nil, functions.ErrNotFound
	}
	return fn, nil
}

func (d *fakeDirectory) Resolve(namespace, name string) (*types.FunctionSource, error) {
	fn, err := d.Get(namespace, name)
	if err != nil {
		return nil, err
	}
	if !fn.IsActive || !fn.SharedPool {
		return nil, functions.ErrNotEligible
	}
	return fn, nil
}

func (d *fakeDirectory) List() ([]*types.FunctionSource, error) {
	var out []*types.FunctionSource
	for _, fn := range d.fns {
		out = append(out, fn)
	}
	return out, nil
}

func (d *fakeDirectory) ListNamespace(namespace string) ([]*types.FunctionSource, error) {
	var out []*types.FunctionSource
	for _, fn := range d.fns {
		if fn.Namespace == namespace {
			out = append(out, fn)
		}
	}
	return out, nil
}

func (d *fakeDirectory) Delete(namespace, name string) error {
	key := namespace + "/" + name
	if _, ok := d.fns[key]; !ok {
		return functions.ErrNotFound
	}
	delete(d.fns, key)
	return nil
}

func (d *fakeDirectory) Close() error { return nil }

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// TestExecuteEndpoint verifies the execute route forwards parameters and
// answers 200 even for failed executions
func TestExecuteEndpoint(t *testing.T) {
	p := &fakePool{
		executeResult: &types.ExecutionResult{
			Status:      types.ExecutionFailed,
			Error:       "script exploded",
			ExecutionID: "e-1",
		},
	}
	s := NewServer(p, newFakeDirectory())

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/execute", map[string]any{
		"function_namespace": "billing",
		"function_name":      "invoice",
		"execution_id":       "e-1",
		"user_id":            "u-1",
		"enabled_namespaces": []string{"billing", "shared"},
		"input_data":         map[string]any{"x": 1},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var res types.ExecutionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, types.ExecutionFailed, res.Status)
	assert.Equal(t, "script exploded", res.Error)

	assert.Equal(t, "billing", p.lastExecute.FunctionNamespace)
	assert.Equal(t, "invoice", p.lastExecute.FunctionName)
	assert.Equal(t, []string{"billing", "shared"}, p.lastExecute.EnabledNamespaces)
	assert.Equal(t, "u-1", p.lastExecute.Context.UserID)
}

// TestExecuteEndpointValidation verifies required fields are enforced
func TestExecuteEndpointValidation(t *testing.T) {
	s := NewServer(&fakePool{}, newFakeDirectory())

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/execute", map[string]any{
		"function_name": "missing-namespace",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestScaleEndpoint verifies scaling, including an explicit zero target
func TestScaleEndpoint(t *testing.T) {
	p := &fakePool{
		scaleReport: &types.ScaleReport{
			Action:        types.ScaleDown,
			PreviousCount: 2,
			CurrentCount:  0,
			Removed:       2,
		},
	}
	s := NewServer(p, newFakeDirectory())

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/workers/scale", map[string]any{
		"count": 0,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, p.lastScale)

	// A missing count is a malformed request, not a scale to zero.
	rec = doJSON(t, s.Handler(), http.MethodPost, "/v1/workers/scale", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestListWorkersEndpoint verifies the worker listing shape
func TestListWorkersEndpoint(t *testing.T) {
	p := &fakePool{
		workers: []types.WorkerInfo{
			{ID: "worker-1", ContainerName: "burrow-worker-1", Status: types.WorkerRunning, Executions: 4},
			{ID: "worker-2", ContainerName: "burrow-worker-2", Status: types.WorkerMissing},
		},
	}
	s := NewServer(p, newFakeDirectory())

	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Workers []types.WorkerInfo `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Workers, 2)
	assert.Equal(t, types.WorkerMissing, resp.Workers[1].Status)
}

// TestFunctionCRUD verifies the function registry routes end to end
func TestFunctionCRUD(t *testing.T) {
	s := NewServer(&fakePool{}, newFakeDirectory())
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/functions", &types.FunctionSource{
		Namespace:  "billing",
		Name:       "invoice",
		Code:       "function invoice(input) { return input; }",
		IsActive:   true,
		SharedPool: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/functions/billing/invoice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fn types.FunctionSource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fn))
	assert.Equal(t, "invoice", fn.Name)

	rec = doJSON(t, h, http.MethodGet, "/v1/functions/billing", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/v1/functions/billing/invoice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/functions/billing/invoice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestPutFunctionValidation verifies namespace and name are required
func TestPutFunctionValidation(t *testing.T) {
	s := NewServer(&fakePool{}, newFakeDirectory())

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/functions", &types.FunctionSource{
		Name: "no-namespace",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestLoadEndpoint verifies the preload route
func TestLoadEndpoint(t *testing.T) {
	p := &fakePool{
		loadReport: &pool.LoadReport{Functions: 3, Workers: 2},
	}
	s := NewServer(p, newFakeDirectory())

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/workers/load", map[string]any{
		"namespaces": []string{"billing"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var report pool.LoadReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Functions)
	assert.Equal(t, 2, report.Workers)
}

// TestHealthEndpoint verifies the health route answers
func TestHealthEndpoint(t *testing.T) {
	s := NewServer(&fakePool{}, newFakeDirectory())

	rec := doJSON(t, s.Handler(), http.MethodGet, "/healthz", nil)
	assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, rec.Code)
}
