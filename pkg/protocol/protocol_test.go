package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinas-io/burrow/pkg/types"
)

// TestRequestRoundTrip verifies the wire form preserves all request fields
func TestRequestRoundTrip(t *testing.T) {
	req := &Request{
		Action:            ActionExecuteInline,
		ExecutionID:       "exec-123",
		FunctionNamespace: "billing",
		FunctionName:      "invoice",
		FunctionCode:      "function invoice(input) { return input; }",
		InputData:         map[string]any{"amount": 42.0},
		EnabledNamespaces: []string{"billing", "shared"},
		Context: &types.ExecutionContext{
			UserID:      "u-1",
			TriggerType: "api",
		},
	}

	data, err := req.Encode()
	require.NoError(t, err)

	got, err := DecodeRequest(data)
	require.NoError(t, err)

	assert.Equal(t, req.Action, got.Action)
	assert.Equal(t, req.ExecutionID, got.ExecutionID)
	assert.Equal(t, req.FunctionCode, got.FunctionCode)
	assert.Equal(t, 42.0, got.InputData["amount"])
	assert.Equal(t, []string{"billing", "shared"}, got.EnabledNamespaces)
	require.NotNil(t, got.Context)
	assert.Equal(t, "u-1", got.Context.UserID)
}

// TestDecodeRequestInvalid verifies garbage input is rejected
func TestDecodeRequestInvalid(t *testing.T) {
	_, err := DecodeRequest([]byte("{not json"))
	assert.Error(t, err)
}

// TestDecodeResult verifies result parsing including failure fields
func TestDecodeResult(t *testing.T) {
	raw := []byte(`{"status":"failed","error":"boom","traceback":"at line 3","execution_id":"e-9"}`)

	res, err := DecodeResult(raw)
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionFailed, res.Status)
	assert.Equal(t, "boom", res.Error)
	assert.Equal(t, "at line 3", res.Traceback)
	assert.Equal(t, "e-9", res.ExecutionID)
}

// TestPaths verifies the well-known file locations
func TestPaths(t *testing.T) {
	assert.Equal(t, "/tmp/exec_request.json", RequestPath(DefaultDir))
	assert.Equal(t, "/tmp/exec_trigger", TriggerPath(DefaultDir))
	assert.Equal(t, "/tmp/exec_result.json", ResultPath(DefaultDir))
	assert.Equal(t, "/tmp/functions.json", FunctionsPath(DefaultDir))
	assert.Equal(t, "/work/exec_result.json", ResultPath("/work"))
}
