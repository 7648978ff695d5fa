package service

import (
	"context"
	"log/slog"

	"github.com/webitel/im-routing-service/config"
	"github.com/webitel/im-routing-service/internal/domain/queue"
	"github.com/webitel/im-routing-service/internal/domain/registry"
	"go.uber.org/fx"
)

// Interface guard
var _ Deliverer = (*Router)(nil)

var Module = fx.Module(
	"service",

	fx.Provide(
		NewTracker,
		func(cfg *config.Config) *queue.OfflineQueue {
			return queue.New(cfg.Queue.Capacity)
		},
		NewRouter,
		fx.Annotate(
			func(r *Router) Deliverer { return r },
			fx.As(new(Deliverer)),
		),
		NewBroadcaster,
		fx.Annotate(
			NewProfileEnricher,
			fx.As(new(Enricher)),
		),
	),

	// Intercept the enricher to add cross-cutting observability.
	fx.Decorate(func(orig Enricher, logger *slog.Logger) Enricher {
		return &enricherMiddleware{
			next:   orig,
			logger: logger,
		}
	}),

	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, router *Router, b *Broadcaster, sweeper *registry.Sweeper) {
		router.SetMaxQueuedAge(cfg.Queue.MaxAge)
		sweeper.AfterSweep(router.Sweep)

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				b.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				b.Stop()
				return nil
			},
		})
	}),
)
