// Package server wires the terminal host: configuration, logging, metrics,
// the PTY pool, the owner-process watcher and the HTTP routes.
//
// Routes:
//
//	GET /health     liveness and pool summary
//	GET /metrics    Prometheus metrics
//	GET /terminals  live PTYs and the idle pid
//	GET /terminal   WebSocket terminal session (?pid=<owner pid>)
package server
