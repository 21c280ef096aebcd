/*
Package api exposes the pool and function directory over HTTP.

Routes:

	POST   /v1/execute                      run a function in the shared pool
	GET    /v1/workers                      list workers with live status
	POST   /v1/workers/scale                scale the pool to a target count
	POST   /v1/workers/load                 preload functions into all workers
	POST   /v1/functions                    register or update a function
	GET    /v1/functions[/:namespace[/:name]]
	DELETE /v1/functions/:namespace/:name
	GET    /healthz                         component health
	GET    /metrics                         Prometheus metrics

Execute always answers 200 with a result object when the pool produced a
result; the status field inside the body distinguishes completed, failed,
and timeout. HTTP error codes are reserved for malformed requests and
directory errors.
*/
package api
