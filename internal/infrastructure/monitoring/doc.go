/*
Package monitoring provides Prometheus metrics for the terminal host.

# Overview

Metrics live on a private registry owned by each Metrics value, so tests
and embedded hosts can create as many collectors as they need.

# Features

- HTTP request metrics (latency, status)
- PTY pool metrics (spawns, kills, live processes, idle hand-offs)
- Session metrics (attached sessions, captures, output volume)
- WebSocket connection metrics
- Uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	metrics.RecordSpawn("idle")
	metrics.SetPtyLive(3)
*/
package monitoring
