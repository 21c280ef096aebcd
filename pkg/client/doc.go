// Package client wraps the Burrow HTTP API for CLI and programmatic usage.
package client
