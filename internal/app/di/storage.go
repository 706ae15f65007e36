package di

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"chart_backend/internal/app/config"
	"chart_backend/internal/feature/candles/adapters"
	"chart_backend/internal/feature/candles/usecase"
	symbollistusecase "chart_backend/internal/feature/symbollist/usecase"
	"chart_backend/internal/platform/cache"
	"chart_backend/internal/platform/db"
	infraredis "chart_backend/internal/platform/redis"
)

// DBConfig converts the database section.
func DBConfig(cfg config.DatabaseConfig) db.Config {
	return db.Config{
		Driver:         cfg.Driver,
		DSN:            cfg.DSN,
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       cfg.Password,
		Name:           cfg.Name,
		SSLMode:        cfg.SSLMode,
		ConnectTimeout: cfg.ConnectTimeout,
		Migrate:        cfg.Migrate,
	}
}

// RedisConfig converts the redis section.
func RedisConfig(cfg config.RedisConfig) infraredis.Config {
	return infraredis.Config{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}
}

// NewCandleRepository creates the feed store wrapped with the Redis cache.
// With a nil client the decorator passes every call through.
func NewCandleRepository(gdb *gorm.DB, rdb *redis.Client, cfg config.RedisConfig) usecase.CandleRepository {
	store := adapters.NewCandleRepository(gdb)
	return cache.NewCachingCandleRepository(rdb, cfg.CacheTTL, store, cfg.Namespace)
}

// SymbolSpecs converts the configured symbols.
func SymbolSpecs(cfg []config.SymbolConfig) []symbollistusecase.SymbolSpec {
	out := make([]symbollistusecase.SymbolSpec, 0, len(cfg))
	for _, s := range cfg {
		out = append(out, symbollistusecase.SymbolSpec{Code: s.Code, Name: s.Name, Source: s.Source})
	}
	return out
}
