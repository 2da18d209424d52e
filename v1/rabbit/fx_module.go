package rabbit

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/flux/v1/observability"
)

// FXModule is an fx.Module that provides the event stream Service.
//
// The module provides:
// 1. *Service (concrete type) for direct use
// 2. Client interface for dependency injection
// 3. Lifecycle management: Start on application start, Shutdown on stop
//
// Usage:
//
//	app := fx.New(
//	    rabbit.FXModule,
//	    fx.Provide(func() rabbit.Config { return cfg.Rabbit }),
//	)
var FXModule = fx.Module("rabbit",
	fx.Provide(
		NewServiceWithDI,
		fx.Annotate(
			func(s *Service) Client { return s },
			fx.As(new(Client)),
		),
	),
	fx.Invoke(RegisterRabbitLifecycle),
)

// RabbitParams groups the dependencies needed to create a Service.
type RabbitParams struct {
	fx.In

	Config         Config
	Logger         Logger                 `optional:"true"`
	Observer       observability.Observer `optional:"true"`
	TracerProvider trace.TracerProvider   `optional:"true"`
}

// NewServiceWithDI creates a Service from fx-injected dependencies. Logger,
// Observer and TracerProvider are optional.
func NewServiceWithDI(params RabbitParams) (*Service, error) {
	return New(params.Config,
		WithLogger(params.Logger),
		WithObserver(params.Observer),
		WithTracerProvider(params.TracerProvider),
	)
}

// RegisterRabbitLifecycle starts the Service with the application and shuts
// it down on stop.
//
// OnStart blocks until the first connection is established, so the
// application start timeout should exceed InitialConnectTimeout. If the
// start fails the supervisor is stopped again before the error is returned.
func RegisterRabbitLifecycle(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.Start(ctx); err != nil {
				_ = svc.Shutdown(context.Background())
				return err
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return svc.Shutdown(ctx)
		},
	})
}
