package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/StorefrontFeed/cmd/server/factory"
	"github.com/StorefrontFeed/internal/app"
	"github.com/StorefrontFeed/internal/domain"
	"github.com/StorefrontFeed/internal/infra/tracing"
	transport "github.com/StorefrontFeed/internal/transport/http"
	"github.com/StorefrontFeed/pkg/config"
	"go.uber.org/fx"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	fx.New(
		fx.Provide(
			// Config
			config.Load,

			// Infrastructure
			factory.NewMongoClient,
			factory.NewMongoRepository,
			fx.Annotate(
				factory.NewPageEventProducer,
				fx.ResultTags(`name:"page_event_producer"`),
			),
			fx.Annotate(
				factory.NewDLQProducer,
				fx.ResultTags(`name:"dlq_producer"`),
			),
			fx.Annotate(
				factory.NewKafkaConsumer,
				fx.ParamTags(``, `name:"dlq_producer"`, ``),
			),
			fx.Annotate(
				factory.NewEventProducer,
				fx.ParamTags(`name:"page_event_producer"`),
			),

			// Catalog
			factory.NewCatalogClient,

			// Services
			factory.NewMirrorService,
			factory.NewFeedService,
			factory.NewImpressionSyncService,
			factory.NewReadinessWaiter,

			// HTTP Server
			func(w *app.ReadinessWaiter) transport.ReadinessChecker { return w },
			func(repo domain.Repository) domain.ProductReader { return repo },
			transport.NewHandler,
			transport.NewHTTPServer,
		),
		fx.Invoke(
			SetupLogger,
			SetupTracer,
			WaitForReady, // Block until dependencies are ready
			RegisterHooks,
			StartServer,
		),
	).Run()
}

// --- Invokers ---

func SetupLogger(cfg *config.Config) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
}

func RegisterHooks(
	lc fx.Lifecycle,
	feeds *app.FeedService,
	mirror *app.MirrorService,
	syncService *app.ImpressionSyncService,
) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				mirror.Start(ctx)
				done <- struct{}{}
			}()
			go func() {
				feeds.Start(ctx)
				done <- struct{}{}
			}()
			syncService.Start(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			for range 2 {
				select {
				case <-done:
				case <-stopCtx.Done():
					return stopCtx.Err()
				}
			}
			return nil
		},
	})
}

func SetupTracer(lc fx.Lifecycle) error {
	ctx := context.Background()
	shutdown, err := tracing.InitTracer(ctx, "storefront-feed")
	if err != nil {
		slog.Error("Failed to initialize tracer", "error", err)
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Info("Shutting down tracer provider")
			return shutdown(ctx)
		},
	})
	return nil
}

// WaitForReady blocks until all dependencies are ready.
func WaitForReady(waiter *app.ReadinessWaiter) error {
	return waiter.WaitForDependencies(context.Background())
}

func StartServer(lc fx.Lifecycle, server *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				slog.Info("Starting storefront feed server", "address", server.Addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("HTTP server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
