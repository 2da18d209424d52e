package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates the Prometheus registry and HTTP server responsible
// for exposing application metrics.
type Metrics struct {
	// Server defines the HTTP server used to expose the /metrics endpoint.
	Server *http.Server

	// Registry is the Prometheus registry where all metrics are registered.
	// Each service maintains its own isolated registry to prevent metric name collisions.
	Registry *prometheus.Registry

	// registerer wraps Registry with the constant service label
	registerer prometheus.Registerer

	namespace string

	// Core built-in metrics, fed by the observability hook
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationBytes    *prometheus.CounterVec
	connectionState   *prometheus.GaugeVec
}

// NewMetrics initializes and returns a new instance of the Metrics struct.
// It sets up a dedicated Prometheus registry, registers default system collectors,
// wraps all metrics with a constant `service` label, and creates an HTTP server
// exposing the /metrics endpoint.
//
// Example:
//
//	m := metrics.NewMetrics(metrics.Config{
//	    Address:                 ":9090",
//	    ServiceName:             "flux",
//	    EnableDefaultCollectors: true,
//	})
//	go m.Server.ListenAndServe()
func NewMetrics(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()

	// All metrics emitted by this service automatically include service="<cfg.ServiceName>".
	wrappedRegistry := prometheus.WrapRegistererWith(
		prometheus.Labels{"service": cfg.ServiceName},
		registry,
	)

	m := &Metrics{
		Registry:   registry,
		registerer: wrappedRegistry,
		namespace:  cfg.Namespace,
	}

	m.operationsTotal = createCounterVec(cfg.Namespace, "operations_total", "Total number of client operations by outcome", []string{"component", "operation", "status"})
	m.operationDuration = createHistogramVec(cfg.Namespace, "operation_duration_seconds", "Duration of client operations in seconds", []string{"component", "operation"}, prometheus.DefBuckets)
	m.operationBytes = createCounterVec(cfg.Namespace, "operation_bytes_total", "Payload bytes handled by client operations", []string{"component", "operation"})
	m.connectionState = createGaugeVec(cfg.Namespace, "connection_state", "1 for the current connection state of a component, 0 otherwise", []string{"component", "state"})

	wrappedRegistry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.operationBytes,
		m.connectionState,
	)

	// Register standard collectors if enabled.
	//   - GoCollector: Memory usage, goroutines, GC stats
	//   - ProcessCollector: CPU, file descriptors, memory stats
	//   - BuildInfoCollector: Binary version/build info
	if cfg.EnableDefaultCollectors {
		wrappedRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	address := cfg.Address
	if address == "" {
		address = DefaultMetricsAddress
	}
	m.Server = &http.Server{
		Addr:    address,
		Handler: mux,
	}
	return m
}
