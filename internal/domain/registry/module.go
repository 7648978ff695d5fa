package registry

import (
	"context"

	"github.com/webitel/im-routing-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		func(cfg *config.Config) *Registry {
			return NewRegistry(
				WithSweepInterval(cfg.Registry.SweepInterval),
				WithIdleTimeout(cfg.Registry.IdleTimeout),
				WithSendBuffer(cfg.Registry.SendBuffer),
			)
		},
		fx.Annotate(
			func(r *Registry) Registrar { return r },
			fx.As(new(Registrar)),
		),
		NewSweeper,
	),
	fx.Invoke(func(lc fx.Lifecycle, r Registrar, sweeper *Sweeper) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				sweeper.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				sweeper.Stop()
				r.Shutdown()
				return nil
			},
		})
	}),
)
