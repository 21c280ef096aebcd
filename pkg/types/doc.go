/*
Package types defines the core data structures used throughout Burrow.

This package contains the fundamental types of Burrow's domain model:
workers, execution requests and results, registered function sources, and
scale reports. These types are shared by the pool manager, the file-based
execution protocol, the in-container executor, the function directory, and
the HTTP API.

# Core Types

Worker pool:
  - Worker: One container instance owned by the pool
  - WorkerStatus: Running, stopped, pending, or missing (detected drift)
  - WorkerInfo: Worker plus its probed runtime status
  - ScaleReport: Structured result of a scale operation

Execution:
  - ExecutionContext: Caller metadata passed through to the function
  - ExecutionResult: Outcome of a call (completed, failed, or timeout)

Functions:
  - FunctionSource: Registered function code with eligibility flags

All types are JSON-serializable; ExecutionResult and the request types in
pkg/protocol together form the on-disk wire format of the execution
protocol.
*/
package types
