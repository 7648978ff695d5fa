package cmd

import (
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-routing-service/config"
	httpsrv "github.com/webitel/im-routing-service/infra/server/http"
	"github.com/webitel/im-routing-service/internal/domain/registry"
	amqphandler "github.com/webitel/im-routing-service/internal/handler/amqp"
	"github.com/webitel/im-routing-service/internal/handler/ws"
	"github.com/webitel/im-routing-service/internal/service"
	"github.com/webitel/im-routing-service/internal/store"
	"go.uber.org/fx"
)

func NewApp(cfg *config.Config) *fx.App {
	opts := []fx.Option{
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
		),
		store.Module,
		registry.Module,
		service.Module,
		ws.Module,
		httpsrv.Module,
	}

	// The bus surface is optional: without a broker the coordinator still
	// serves WebSocket traffic, it just neither consumes externally
	// created messages nor exports receipts.
	if cfg.Broker.Enabled {
		opts = append(opts, amqphandler.Module)
	}

	return fx.New(opts...)
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With("service", ServiceName)

	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}
