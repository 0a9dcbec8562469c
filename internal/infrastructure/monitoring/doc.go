/*
Package monitoring provides Prometheus metrics for the bundle service.

# Features

- HTTP request metrics (latency, throughput)
- Bundle operation metrics (save, use, delete, good, prune outcomes)
- Extraction volume (files, bytes) and host reloads
- WebSocket connection gauge

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
