package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	candleadapters "chart_backend/internal/feature/candles/adapters"
	symbolentity "chart_backend/internal/feature/symbollist/domain/entity"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultSQLitePath     = "./chart.db"
	DefaultConnectTimeout = 60 * time.Second
)

// Config はデータベース接続の設定です。DSNが空の場合は個別の項目から組み立てます。
type Config struct {
	Driver         string
	DSN            string
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	ConnectTimeout time.Duration
	Migrate        bool
}

// Opener はDialectorからDB接続を開きます。テストで差し替えます。
type Opener func(gorm.Dialector) (*gorm.DB, error)

func defaultOpener(d gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// BuildDSN はドライバーに応じたDSN文字列を返します。
func BuildDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	switch cfg.Driver {
	case DriverSQLite, "":
		return DefaultSQLitePath, nil
	case DriverPostgres:
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     cfg.Host + ":" + cfg.Port,
			Path:     "/" + cfg.Name,
			RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// Dialector は設定からgorm.Dialectorを作成します。
func Dialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == DriverPostgres {
		return postgres.Open(dsn), nil
	}
	return sqlite.Open(dsn), nil
}

// ConnectWithRetry は接続に成功するかtimeoutを過ぎるまで指数バックオフで再試行します。
func ConnectWithRetry(ctx context.Context, d gorm.Dialector, timeout time.Duration, open Opener) (*gorm.DB, error) {
	if open == nil {
		open = defaultOpener
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 3 * time.Second
	bo.MaxElapsedTime = timeout

	var db *gorm.DB
	op := func() error {
		var err error
		db, err = open(d)
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("DB connect failed, retrying", "driver", d.Name(), "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, fmt.Errorf("db: connect failed after %v: %w", timeout, err)
	}
	return db, nil
}

// Migrate はフィードのテーブル（ローソク足、銘柄）を作成・更新します。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&candleadapters.CandleModel{},
		&symbolentity.Symbol{},
	)
}

// OpenDB は設定に従って接続し、必要であればマイグレーションを実行します。
func OpenDB(ctx context.Context, cfg Config) (*gorm.DB, error) {
	d, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := ConnectWithRetry(ctx, d, cfg.ConnectTimeout, nil)
	if err != nil {
		return nil, err
	}
	slog.Info("database connected", "driver", d.Name())

	if cfg.Migrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("db: migrate: %w", err)
		}
	}
	return db, nil
}
