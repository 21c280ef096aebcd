/*
Package log provides structured logging for Burrow built on zerolog.

A single global logger is initialized once at startup via Init and shared by
all components. Child loggers scoped to a component, worker, or execution
are created with the With* helpers:

	logger := log.WithComponent("pool")
	logger.Info().Str("worker_id", id).Msg("worker created")

Console output (human-readable) is the default; JSON output is available for
log aggregation setups.
*/
package log
