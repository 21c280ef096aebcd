/*
Package pool implements the worker pool manager: the host-side component
owning the set of live worker containers.

The manager creates workers with a fixed security policy, rediscovers
pre-existing containers by name prefix after a host restart, scales up and
down at runtime, and dispatches executions round-robin across the current
worker list. One mutex guards the worker set, registration order, and the
round-robin cursor; it is held for selection and bookkeeping only, never
across the blocking poll phase of a call, so executions against distinct
workers proceed concurrently.

Execute never returns an error: pool-empty, ineligible function, protocol
timeout, script failure, and infrastructure failure all surface as a result
with a status field. There is no cancellation of in-container work; a
timed-out call is abandoned and the result it may still produce is discarded
by execution-id correlation.

The Reconciler is a background probe that flags workers whose containers
have disappeared. It reports drift through logs, metrics, and events but
leaves reconciliation to an explicit scale call.
*/
package pool
