/*
Package protocol defines the file-based execution protocol between the pool
manager (host side) and the in-container executor (guest side).

The two sides share no network channel. They communicate through three
well-known files inside the worker container's tmpfs:

  - exec_request.json: the serialized request
  - exec_trigger: a marker whose existence signals pending work
  - exec_result.json: the serialized result, written by the executor

The host writes the request, then the trigger, then polls for the result at a
fixed interval up to the function timeout. The executor independently polls
for the trigger, executes, writes the result, and clears the request. This
shape needs only exec-into-container primitives, so workers can run with all
capabilities dropped and no open ports.

Timed-out calls are abandoned, not cancelled: the executor may still finish
and write a result nobody reads. Every result carries the execution id of the
request that produced it, and both sides discard results whose id does not
match the call in flight, so a late orphan can never be read as the answer to
a different request.
*/
package protocol
