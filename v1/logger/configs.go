package logger

// Log levels accepted by Config.Level.
const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Config defines the configuration for the logger.
type Config struct {
	// Level selects the minimum level that is written.
	//  1. production -> INFO
	//  2. development -> DEBUG
	//  else -> INFO
	Level string `yaml:"level" envconfig:"ZAP_LOGGER_LEVEL" default:"info"`

	// EnableTracing adds trace_id and span_id from the OpenTelemetry span found
	// in the context to entries written through the *WithContext methods.
	EnableTracing bool `yaml:"enable_tracing" envconfig:"LOGGER_ENABLE_TRACING" default:"false"`

	// ServiceName is attached to every entry as the "service" field.
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"flux"`
}
