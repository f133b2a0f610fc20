// Package observability provides structured logging, Prometheus
// metrics, health probes and graceful shutdown for the registrar
// service. Everything here is constructed at startup and passed by
// reference; there is no global state.
package observability
