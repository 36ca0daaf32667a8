// Package main is the entry point for the terminal host.
//
// The host serves interactive shells to UI windows over WebSocket. Each
// connection owns one terminal session backed by a PTY from a shared pool
// that keeps one pre-warmed shell ready for the next window.
//
// Configuration:
//   - Environment variables (12-factor)
//   - YAML or TOML file via -config
//   - CLI flags (override both)
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev -config terminal.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, live shells are killed after the
//     grace delay
package main
