package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sinas-io/burrow/pkg/pool"
	"github.com/sinas-io/burrow/pkg/types"
)

// Client wraps the Burrow HTTP API for CLI usage
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at addr (host:port or URL)
func NewClient(addr string) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http: &http.Client{
			// Execute calls can legitimately run up to the function
			// timeout; leave cancellation to the caller's context.
			Timeout: 0,
		},
	}
}

// Execute runs a function through the pool
func (c *Client) Execute(ctx context.Context, namespace, name string, input map[string]any, executionID string) (*types.ExecutionResult, error) {
	body := map[string]any{
		"function_namespace": namespace,
		"function_name":      name,
		"input_data":         input,
		"execution_id":       executionID,
		"trigger_type":       "cli",
	}
	var result types.ExecutionResult
	if err := c.post(ctx, "/v1/execute", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Scale scales the pool to target workers
func (c *Client) Scale(ctx context.Context, target int) (*types.ScaleReport, error) {
	var report types.ScaleReport
	if err := c.post(ctx, "/v1/workers/scale", map[string]any{"count": target}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListWorkers lists the pool's workers with live status
func (c *Client) ListWorkers(ctx context.Context) ([]types.WorkerInfo, error) {
	var resp struct {
		Workers []types.WorkerInfo `json:"workers"`
	}
	if err := c.get(ctx, "/v1/workers", &resp); err != nil {
		return nil, err
	}
	return resp.Workers, nil
}

// LoadFunctions preloads functions into every worker
func (c *Client) LoadFunctions(ctx context.Context, namespaces []string) (*pool.LoadReport, error) {
	var report pool.LoadReport
	if err := c.post(ctx, "/v1/workers/load", map[string]any{"namespaces": namespaces}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// PutFunction registers or updates a function
func (c *Client) PutFunction(ctx context.Context, fn *types.FunctionSource) error {
	return c.post(ctx, "/v1/functions", fn, nil)
}

// ListFunctions lists registered functions
func (c *Client) ListFunctions(ctx context.Context) ([]*types.FunctionSource, error) {
	var resp struct {
		Functions []*types.FunctionSource `json:"functions"`
	}
	if err := c.get(ctx, "/v1/functions", &resp); err != nil {
		return nil, err
	}
	return resp.Functions, nil
}

// DeleteFunction removes a function
func (c *Client) DeleteFunction(ctx context.Context, namespace, name string) error {
	path := "/v1/functions/" + url.PathEscape(namespace) + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// WaitReady polls the health endpoint until the server answers or the
// context expires
func (c *Client) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
