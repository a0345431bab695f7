// Package observability provides the gateway's structured logging and
// Prometheus instrumentation.
package observability
