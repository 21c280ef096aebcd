package types

import (
	"time"
)

// Worker represents one container instance in the shared pool
type Worker struct {
	ID            string    `json:"id"`
	ContainerName string    `json:"container_name"`
	ContainerID   string    `json:"container_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Executions counts completed calls since creation or rediscovery.
	// It is not persisted; a manager restart resets it to zero.
	Executions int64 `json:"executions"`
}

// WorkerStatus represents the observed state of a worker's container
type WorkerStatus string

const (
	WorkerRunning WorkerStatus = "running"
	WorkerStopped WorkerStatus = "stopped"
	WorkerPending WorkerStatus = "pending"

	// WorkerMissing means the container reference no longer resolves in the
	// runtime. The pool never initiates this transition; it is detected drift
	// that operators reconcile by scaling.
	WorkerMissing WorkerStatus = "missing"
)

// WorkerInfo is a worker plus its probed runtime status, as reported by
// the pool's list operation
type WorkerInfo struct {
	ID            string       `json:"id"`
	ContainerName string       `json:"container_name"`
	Status        WorkerStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	Executions    int64        `json:"executions"`
}

// ExecutionStatus is the outcome of a finished (or abandoned) call
type ExecutionStatus string

const (
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionTimeout   ExecutionStatus = "timeout"

	// ExecutionLoaded is returned only for load_functions protocol actions
	ExecutionLoaded ExecutionStatus = "loaded"
)

// ExecutionContext carries caller metadata through to the function.
// The pool passes it to the executor without interpreting it.
type ExecutionContext struct {
	UserID      string `json:"user_id,omitempty"`
	UserEmail   string `json:"user_email,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
	TriggerType string `json:"trigger_type,omitempty"`
	ChatID      string `json:"chat_id,omitempty"`
}

// ExecutionResult is the structured outcome returned for every execute call.
// Result is set iff Status is completed; Error and Traceback iff failed.
type ExecutionResult struct {
	Status      ExecutionStatus `json:"status"`
	Result      any             `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Traceback   string          `json:"traceback,omitempty"`
	ExecutionID string          `json:"execution_id,omitempty"`
	DurationMS  int64           `json:"duration_ms,omitempty"`
}

// FunctionSource is a registered function as stored in the directory
type FunctionSource struct {
	Namespace  string    `json:"namespace"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	IsActive   bool      `json:"is_active"`
	SharedPool bool      `json:"shared_pool"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key returns the directory key for the function ("namespace/name")
func (f *FunctionSource) Key() string {
	return f.Namespace + "/" + f.Name
}

// ScaleAction describes what a scale operation did
type ScaleAction string

const (
	ScaleUp       ScaleAction = "scale_up"
	ScaleDown     ScaleAction = "scale_down"
	ScaleNoChange ScaleAction = "no_change"
)

// ScaleReport is the structured result of a scale operation
type ScaleReport struct {
	Action        ScaleAction `json:"action"`
	PreviousCount int         `json:"previous_count"`
	CurrentCount  int         `json:"current_count"`
	Added         int         `json:"added,omitempty"`
	Removed       int         `json:"removed,omitempty"`
}

// WorkerResources holds the resource ceiling applied to every worker container
type WorkerResources struct {
	MemoryBytes int64
	CPUCores    int64
	TmpfsBytes  int64
}
