// Command flux subscribes to the event stream fanout exchange and logs every
// event it receives.
//
// Configuration comes from the environment (see the Config structs of the
// v1 packages) and, optionally, a YAML file given with -config.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Aleph-Alpha/flux/v1/logger"
	"github.com/Aleph-Alpha/flux/v1/metrics"
	"github.com/Aleph-Alpha/flux/v1/rabbit"
	"github.com/Aleph-Alpha/flux/v1/tracer"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flux: %v\n", err)
		os.Exit(1)
	}

	// Run blocks until SIGINT or SIGTERM.
	newApp(cfg).Run()
}

func newApp(cfg Config) *fx.App {
	return fx.New(
		fx.Supply(cfg.Logger, cfg.Metrics, cfg.Tracer, cfg.Rabbit),
		logger.FXModule,
		metrics.FXModule,
		tracer.FXModule,
		rabbit.FXModule,
		fx.Provide(
			func(l logger.Logger) rabbit.Logger { return l },
			func(t *tracer.Tracer) trace.TracerProvider { return t.Provider() },
			newEventLogger,
		),
		fx.Invoke(registerEventLogger),
		fx.StartTimeout(rabbit.InitialConnectTimeout+5*time.Second),
		fx.WithLogger(func(l *logger.LoggerClient) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Zap}
		}),
	)
}

// registerEventLogger subscribes once the service has connected. Its hook is
// appended after the rabbit module's, so Start has already returned.
func registerEventLogger(lc fx.Lifecycle, client rabbit.Client, events *eventLogger, log logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// The subscription lives until the service shuts down.
			sub, err := client.Subscribe(context.Background(), events.handle)
			if err != nil {
				return fmt.Errorf("failed to subscribe to event stream: %w", err)
			}
			log.Info("subscribed to event stream", nil, map[string]interface{}{
				"subscription": sub.ID(),
			})
			return nil
		},
	})
}
