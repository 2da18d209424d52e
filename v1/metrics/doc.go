// Package metrics provides Prometheus-based monitoring for flux services.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - MetricsCollector interface: Defines the contract for metrics operations
//   - Metrics struct: Concrete implementation of the MetricsCollector interface
//   - NewMetrics constructor: Returns *Metrics (concrete type)
//   - FX module: Provides *Metrics, MetricsCollector and observability.Observer
//
// Core Features:
//   - Exposes a configurable /metrics endpoint for Prometheus scraping
//   - Automatic registration of Go runtime and process-level metrics
//   - A constant service label on every metric
//   - An observability.Observer that turns client operations into
//     operations_total, operation_duration_seconds, operation_bytes_total
//     and connection_state series
//
// # Direct Usage (Without FX)
//
//	m := metrics.NewMetrics(metrics.Config{
//		Address:                 ":9090",
//		EnableDefaultCollectors: true,
//		ServiceName:             "flux",
//	})
//	go m.Server.ListenAndServe()
//
//	svc, err := rabbit.New(cfg, rabbit.WithObserver(m))
//
// # FX Module Integration
//
//	app := fx.New(
//		logger.FXModule,
//		metrics.FXModule,
//		fx.Provide(func() metrics.Config {
//			return metrics.Config{Address: ":9090", ServiceName: "flux"}
//		}),
//	)
//
// # Configuration
//
//	METRICS_ADDRESS=:9090
//	METRICS_ENABLE_DEFAULT_COLLECTORS=true
//	METRICS_NAMESPACE=flux
//	SERVICE_NAME=flux
package metrics
