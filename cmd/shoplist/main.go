package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"shoplist/internal/amqp"
	"shoplist/internal/backend"
	"shoplist/internal/cache"
	"shoplist/internal/cli"
	"shoplist/internal/config"
	"shoplist/internal/core"
	apphttp "shoplist/internal/http"
	"shoplist/internal/log"
	"shoplist/internal/services"
	"shoplist/internal/session"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = time.Minute
	sessionSweepInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), "shoplist")
	cfg := cli.LoadAndValidateConfig(boot, (*config.Config).Validate)
	logger := cli.SetupLogger(cfg.LogLevel, "shoplist")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	factory := backend.NewFactory(logger.Logger)
	res, err := factory.CreateBackend(ctx, backend.FromAppConfig(cfg))
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close data backend", log.FieldError, err)
		}
	}()

	// Events are optional; a nil publisher makes services skip them.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, string(amqp.ItemPurchased))
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		events = client
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	search := cache.NewLRUCache[[]core.ShoppingItem](cfg.SearchCacheSize, cfg.SearchCacheTTL)
	caches := cache.NewManager(search)

	items := services.NewItemService(res.Store, events, search)
	labels := services.NewLabelService(res.Store, services.NewSynchronizer(res.Store, events), events).InvalidatesSearch(items)
	sessions := session.NewManager(ctx, res.Store, cfg.SessionIdleTimeout).WithLimit(cfg.MaxSessions)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Items:    items,
		Labels:   labels,
		Sessions: sessions,
		Ready:    res.Ready,
		Logger:   logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return items.Run(gctx) })
	g.Go(func() error {
		caches.Run(gctx, cacheCleanupInterval)
		return nil
	})
	g.Go(func() error { return sessions.Run(gctx, sessionSweepInterval) })
	g.Go(func() error {
		logger.Info("Starting shoplist server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
