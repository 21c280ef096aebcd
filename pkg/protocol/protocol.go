package protocol

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/sinas-io/burrow/pkg/types"
)

// Well-known file names exchanged through the worker's tmpfs. The host
// writes the request and trigger; the executor writes the result. The
// trigger's existence, not its content, signals pending work.
const (
	DefaultDir    = "/tmp"
	RequestFile   = "exec_request.json"
	TriggerFile   = "exec_trigger"
	ResultFile    = "exec_result.json"
	FunctionsFile = "functions.json"
)

// Action selects what the executor does with a request
type Action string

const (
	// ActionExecute invokes a function previously loaded into the
	// executor's persistent namespace.
	ActionExecute Action = "execute"

	// ActionExecuteInline carries the function source with the request and
	// runs it in a fresh, request-scoped namespace.
	ActionExecuteInline Action = "execute_inline"

	// ActionLoadFunctions compiles a batch of functions into the
	// persistent namespace ahead of time.
	ActionLoadFunctions Action = "load_functions"
)

// FunctionDef is one function in a load_functions batch
type FunctionDef struct {
	Code string `json:"code"`
}

// Request is the unit of work written to a worker's request file.
// Exactly one request may be outstanding per worker; the protocol has
// no multiplexing.
type Request struct {
	Action            Action                  `json:"action"`
	ExecutionID       string                  `json:"execution_id,omitempty"`
	FunctionNamespace string                  `json:"function_namespace,omitempty"`
	FunctionName      string                  `json:"function_name,omitempty"`
	FunctionCode      string                  `json:"function_code,omitempty"`
	InputData         map[string]any          `json:"input_data,omitempty"`
	Context           *types.ExecutionContext `json:"context,omitempty"`

	// EnabledNamespaces lists the namespaces the caller may reach. Carried
	// to the executor uninterpreted, like Context.
	EnabledNamespaces []string `json:"enabled_namespaces,omitempty"`

	// Functions is set for load_functions, keyed namespace -> name -> def.
	Functions map[string]map[string]FunctionDef `json:"functions,omitempty"`
}

// Encode serializes the request for the wire
func (r *Request) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return data, nil
}

// DecodeRequest parses a request from its wire form
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// DecodeResult parses an execution result from its wire form
func DecodeResult(data []byte) (*types.ExecutionResult, error) {
	var res types.ExecutionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &res, nil
}

// RequestPath returns the request file path under dir
func RequestPath(dir string) string { return path.Join(dir, RequestFile) }

// TriggerPath returns the trigger marker path under dir
func TriggerPath(dir string) string { return path.Join(dir, TriggerFile) }

// ResultPath returns the result file path under dir
func ResultPath(dir string) string { return path.Join(dir, ResultFile) }

// FunctionsPath returns the boot-time function preload path under dir
func FunctionsPath(dir string) string { return path.Join(dir, FunctionsFile) }
