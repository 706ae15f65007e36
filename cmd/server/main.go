package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"chart_backend/internal/app/config"
	"chart_backend/internal/app/di"
	"chart_backend/internal/app/router"
	candleshandler "chart_backend/internal/feature/candles/transport/handler"
	"chart_backend/internal/feature/candles/transport/ws"
	candlesusecase "chart_backend/internal/feature/candles/usecase"
	symbollistadapters "chart_backend/internal/feature/symbollist/adapters"
	symbollisthandler "chart_backend/internal/feature/symbollist/transport/handler"
	symbollistusecase "chart_backend/internal/feature/symbollist/usecase"
	"chart_backend/internal/platform/db"
	"chart_backend/internal/platform/http/handler"
	"chart_backend/internal/platform/logger"
	"chart_backend/internal/platform/metrics"
	infraredis "chart_backend/internal/platform/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	path, err := config.ParseFlags("server", os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if _, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		return err
	}
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	gdb, err := db.OpenDB(ctx, di.DBConfig(cfg.Database))
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	// Redis
	rdb, err := infraredis.NewRedisClient(ctx, di.RedisConfig(cfg.Redis))
	if err != nil {
		slog.Warn("Redis unavailable. Running without cache.", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close Redis client", "error", err)
			}
		}()
	}

	// Repository
	symbolRepo := symbollistadapters.NewSymbolRepository(gdb)
	candleRepo := di.NewCandleRepository(gdb, rdb, cfg.Redis)

	// Usecase
	symbolUC := symbollistusecase.NewSymbolUsecase(symbolRepo)
	if err := symbolUC.EnsureSymbols(ctx, di.SymbolSpecs(cfg.Symbols)); err != nil {
		return err
	}
	feedUC := candlesusecase.NewFeedUsecase(candleRepo, symbolUC, di.NewGenerator(cfg.Generator, nil), candlesusecase.FeedConfig{
		Interval:  cfg.Feed.Interval,
		Step:      cfg.Generator.Interval,
		SeedCount: cfg.Generator.SeedCount,
		Source:    cfg.Feed.Source,
	})

	// Handler
	handlers := router.Handlers{
		Candles: candleshandler.NewCandlesHandler(feedUC),
		Symbols: symbollisthandler.NewSymbolHandler(symbolUC),
		Chart:   ws.NewChartSocket(di.NewCandleSource(cfg), di.NewChartSocketConfig(cfg.Session)),
		Ready:   readyChecks(sqlDB.PingContext, rdb),
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.NewRouter(handlers),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		// 停止時にWebSocketセッションも終了させる
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", cfg.Server.Addr, "source", cfg.Source.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Feed.Enabled {
		g.Go(func() error {
			return runFeed(gctx, cfg.Feed.Schedule, feedUC)
		})
	}
	return g.Wait()
}

func readyChecks(dbPing handler.Check, rdb *redis.Client) map[string]handler.Check {
	checks := map[string]handler.Check{"database": dbPing}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
