// Package logger provides structured logging for flux services.
//
// The package wraps Uber's zap behind a small interface so that other packages
// can depend on Logger while applications get JSON output with consistent
// fields.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - Logger interface: Defines the contract for logging operations
//   - LoggerClient struct: Concrete implementation of the Logger interface
//   - NewLoggerClient constructor: Returns *LoggerClient (concrete type)
//   - FX module: Provides both *LoggerClient and Logger interface for dependency injection
//
// # Direct Usage (Without FX)
//
//	log := logger.NewLoggerClient(logger.Config{
//		Level:         logger.Info,
//		EnableTracing: true,
//		ServiceName:   "flux",
//	})
//
//	log.Info("Subscriber started", nil, map[string]interface{}{
//		"exchange": "plane.event_stream",
//	})
//
//	// Adds trace_id and span_id when ctx carries a span
//	log.InfoWithContext(ctx, "Processing event", nil, nil)
//
// # FX Module Integration
//
//	app := fx.New(
//		logger.FXModule,
//		fx.Provide(func() logger.Config {
//			return logger.Config{Level: logger.Info, ServiceName: "flux"}
//		}),
//	)
//
// # Configuration
//
//	ZAP_LOGGER_LEVEL=debug          # Log level (debug, info, warning, error)
//	LOGGER_ENABLE_TRACING=true      # Enable distributed tracing integration
//	SERVICE_NAME=flux               # Value of the "service" field
//
// # Thread Safety
//
// All methods on the Logger interface are safe for concurrent use by multiple
// goroutines.
package logger
