package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"chart_backend/internal/app/config"
	"chart_backend/internal/app/di"
	"chart_backend/internal/feature/candles/usecase"
	symbollistadapters "chart_backend/internal/feature/symbollist/adapters"
	symbolentity "chart_backend/internal/feature/symbollist/domain/entity"
	symbollistusecase "chart_backend/internal/feature/symbollist/usecase"
	"chart_backend/internal/platform/db"
	"chart_backend/internal/platform/logger"
	infraredis "chart_backend/internal/platform/redis"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	path, err := config.ParseFlags("ingest", args)
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

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Ingest.Timeout)
	defer cancel()

	gdb, err := db.OpenDB(ctx, di.DBConfig(cfg.Database))
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer closeLogged("database", sqlDB)

	// Redisがあれば書き込み時にキャッシュを無効化する
	rdb, err := infraredis.NewRedisClient(ctx, di.RedisConfig(cfg.Redis))
	if err != nil {
		slog.Warn("Redis unavailable. Cache will not be invalidated.", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer closeLogged("redis", rdb)
	}

	marketRepo := di.NewMarket(cfg.TwelveData)
	candleRepo := di.NewCandleRepository(gdb, rdb, cfg.Redis)
	symbolUC := symbollistusecase.NewSymbolUsecase(symbollistadapters.NewSymbolRepository(gdb))
	uc := usecase.NewIngestUsecase(marketRepo, candleRepo, di.NewIngestRateLimiter(cfg.Ingest), usecase.IngestConfig{
		Intervals:  cfg.Ingest.Intervals,
		OutputSize: cfg.Ingest.OutputSize,
		MaxRetries: cfg.Ingest.MaxRetries,
	})

	if err := symbolUC.EnsureSymbols(ctx, di.SymbolSpecs(cfg.Symbols)); err != nil {
		return err
	}
	symbols, err := symbolUC.ListActiveCodes(ctx, symbolentity.SourceTwelveData)
	if err != nil {
		return err
	}

	if err := uc.IngestAll(ctx, symbols); err != nil {
		return err
	}
	slog.Info("ingest ok", "symbols", len(symbols))
	return nil
}

func closeLogged(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Error("failed to close "+name, "error", err)
	}
}
