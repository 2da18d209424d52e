package metrics

// Default port for metrics server if none is specified.
const DefaultMetricsAddress = ":9090"

// Config defines the configuration structure for the Prometheus metrics server.
// It contains settings that control how metrics are exposed and collected.
type Config struct {
	// Address determines the network address where the Prometheus
	// metrics HTTP server listens.
	//
	// Example values:
	//   - ":9090"   → Listen on all interfaces, port 9090
	//   - "127.0.0.1:9100" → Listen only on localhost, port 9100
	//
	// Default: ":9090"
	Address string `yaml:"address" envconfig:"METRICS_ADDRESS" default:":9090"`

	// EnableDefaultCollectors controls whether the built-in Go runtime
	// and process metrics are automatically registered.
	//
	// Default: true
	EnableDefaultCollectors bool `yaml:"enable_default_collectors" envconfig:"METRICS_ENABLE_DEFAULT_COLLECTORS" default:"true"`

	// Namespace sets a global prefix for all metrics registered by this service.
	//
	// Example:
	//   Namespace: "flux"
	//   → Metric name becomes "flux_operations_total"
	Namespace string `yaml:"namespace" envconfig:"METRICS_NAMESPACE"`

	// ServiceName identifies the service exposing metrics.
	// It is attached as a constant "service" label to every metric.
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"flux"`
}
