// Package server provides the HTTP server for the refinement service.
//
// The server wires the API handlers and middleware chain over a
// standard net/http mux, serves Prometheus metrics when enabled, and
// shuts down gracefully on SIGINT/SIGTERM or context cancellation.
//
// The orchestrator behind the handlers is held behind a swappable
// indirection so a configuration reload can replace quota and cache
// parameters without restarting the listener.
package server
