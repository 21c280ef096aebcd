/*
Package executor implements the guest side of the execution protocol: the
long-running loop inside every worker container.

The executor polls the shared tmpfs for a trigger marker. When one appears
alongside a request file it runs the requested function and writes a result
file, then clears the request. The state machine is strictly sequential:
idle, triggered, executing, result written, idle again. Nothing executes
concurrently inside a single worker.

Function code is ECMAScript run on an embedded goja runtime. Load mode
compiles source once into a persistent namespace keyed by namespace/name;
inline mode gives every request a fresh throwaway runtime. Script failures
become failed results with message and stack trace; the loop itself never
exits on a bad request.

The `burrow executor` command runs this package and is the entrypoint of
the worker container image.
*/
package executor
