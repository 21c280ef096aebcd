/*
Package metrics exposes Prometheus metrics and component health for Burrow.

Pool gauges track registered and missing workers; execution counters and the
duration histogram cover every call the pool mediates, including synthetic
timeout results. The health checker aggregates per-component status for the
API's health endpoint.
*/
package metrics
