package tracer

// Config holds the tracer settings.
type Config struct {
	// ServiceName is reported as the service.name resource attribute
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"flux"`

	// AppEnv is reported as the deployment environment
	AppEnv string `yaml:"app_env" envconfig:"APP_ENV" default:"development"`

	// EnableExport turns on the OTLP/HTTP batch exporter. When false spans are
	// still created and propagated, but never leave the process.
	EnableExport bool `yaml:"enable_export" envconfig:"TRACER_ENABLE_EXPORT" default:"false"`

	// Endpoint overrides the collector host:port. Empty falls back to the
	// standard OTEL_EXPORTER_OTLP_* environment variables.
	Endpoint string `yaml:"endpoint" envconfig:"TRACER_ENDPOINT"`

	// Insecure disables TLS towards the collector
	Insecure bool `yaml:"insecure" envconfig:"TRACER_INSECURE" default:"false"`
}
