// Package config はアプリケーション設定の読み込みと検証を行います。
// 優先順位は 環境変数(CHART_*) > 設定ファイル(YAML) > 既定値 です。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/domain/mockgen"
	symbolentity "chart_backend/internal/feature/symbollist/domain/entity"
	"chart_backend/internal/platform/db"
)

// EnvPrefix は環境変数のプレフィックスです。例: CHART_SERVER_ADDR
const EnvPrefix = "CHART"

const (
	SourceMock     = "mock"
	SourceUpstream = "upstream"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Source     SourceConfig     `mapstructure:"source"`
	Session    SessionConfig    `mapstructure:"session"`
	Generator  GeneratorConfig  `mapstructure:"generator"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Symbols    []SymbolConfig   `mapstructure:"symbols"`
	TwelveData TwelveDataConfig `mapstructure:"twelvedata"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"`
	DSN            string        `mapstructure:"dsn"`
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	SSLMode        string        `mapstructure:"sslmode"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Migrate        bool          `mapstructure:"migrate"`
}

// RedisConfig のAddrが空の場合、キャッシュなしで起動します。
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	Namespace   string        `mapstructure:"namespace"`
}

// SourceConfig はチャートセッションがローソク足を取得する先です。
// mockはプロセス内の疑似データ、upstreamはBaseURLの /candles を呼びます。
type SourceConfig struct {
	Mode         string        `mapstructure:"mode"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DefaultLimit int           `mapstructure:"default_limit"`
}

type SessionConfig struct {
	Window       string        `mapstructure:"window"`
	Live         bool          `mapstructure:"live"`
	FetchLimit   int           `mapstructure:"fetch_limit"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollLimit    int           `mapstructure:"poll_limit"`
	MaxCandles   int           `mapstructure:"max_candles"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
}

// GeneratorConfig は疑似ローソク足生成器の設定です。Seedが0の場合は起動時刻から決めます。
type GeneratorConfig struct {
	Seed       uint64        `mapstructure:"seed"`
	Stamp      string        `mapstructure:"stamp"`
	Interval   time.Duration `mapstructure:"interval"`
	SeedCount  int           `mapstructure:"seed_count"`
	MaxCandles int           `mapstructure:"max_candles"`
}

// FeedConfig は /candles で配信するフィードの更新設定です。
type FeedConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // cron式または @every 記法
	Interval string `mapstructure:"interval"`
	Source   string `mapstructure:"source"`
}

type SymbolConfig struct {
	Code   string `mapstructure:"code"`
	Name   string `mapstructure:"name"`
	Source string `mapstructure:"source"`
}

type TwelveDataConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type IngestConfig struct {
	Intervals    []string      `mapstructure:"intervals"`
	OutputSize   int           `mapstructure:"output_size"`
	MaxRetries   uint64        `mapstructure:"max_retries"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.driver", db.DriverSQLite)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "chart")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.connect_timeout", "60s")
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.cache_ttl", "5m")
	v.SetDefault("redis.namespace", "candles")

	v.SetDefault("source.mode", SourceMock)
	v.SetDefault("source.base_url", "http://localhost:8080")
	v.SetDefault("source.timeout", "15s")
	v.SetDefault("source.default_limit", 500)

	v.SetDefault("session.window", string(entity.WindowMonth))
	v.SetDefault("session.live", false)
	v.SetDefault("session.fetch_limit", 500)
	v.SetDefault("session.poll_interval", "5s")
	v.SetDefault("session.poll_limit", 2)
	v.SetDefault("session.max_candles", 0)
	v.SetDefault("session.write_timeout", "10s")
	v.SetDefault("session.pong_wait", "60s")

	v.SetDefault("generator.seed", 0)
	v.SetDefault("generator.stamp", string(mockgen.StampFixed))
	v.SetDefault("generator.interval", "1m")
	v.SetDefault("generator.seed_count", 80)
	v.SetDefault("generator.max_candles", 150)

	v.SetDefault("feed.enabled", true)
	v.SetDefault("feed.schedule", "@every 1m")
	v.SetDefault("feed.interval", "1min")
	v.SetDefault("feed.source", symbolentity.SourceMock)

	v.SetDefault("symbols", []map[string]any{
		{"code": "DEMO", "name": "Demo Corp", "source": symbolentity.SourceMock},
		{"code": "TEST", "name": "Test Industries", "source": symbolentity.SourceMock},
	})

	v.SetDefault("twelvedata.api_key", "")
	v.SetDefault("twelvedata.base_url", "https://api.twelvedata.com")
	v.SetDefault("twelvedata.timeout", "10s")

	v.SetDefault("ingest.intervals", []string{"1day", "1week", "1month"})
	v.SetDefault("ingest.output_size", 200)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.rate_limit", 8)
	v.SetDefault("ingest.rate_interval", "1m")
	v.SetDefault("ingest.timeout", "5m")
}

// Load は .env、既定値、設定ファイル(pathが空なら省略)、環境変数の順に読み込み、検証済みの設定を返します。
func Load(path string) (*Config, error) {
	// .envは任意
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 既存の環境変数名も受け付ける
	if err := v.BindEnv("twelvedata.api_key", EnvPrefix+"_TWELVEDATA_API_KEY", "TWELVE_DATA_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// ParseFlags はコマンドライン引数から設定ファイルのパスを取り出します。
func ParseFlags(name string, args []string) (string, error) {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	path := flags.StringP("config", "c", "", "path to YAML config file")
	if err := flags.Parse(args); err != nil {
		return "", err
	}
	return *path, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	switch c.Database.Driver {
	case db.DriverSQLite, db.DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	switch c.Source.Mode {
	case SourceMock:
	case SourceUpstream:
		if c.Source.BaseURL == "" {
			return errors.New("source.base_url is required in upstream mode")
		}
	default:
		return fmt.Errorf("source.mode must be %q or %q, got %q", SourceMock, SourceUpstream, c.Source.Mode)
	}

	if _, err := entity.ParseWindow(c.Session.Window); err != nil {
		return fmt.Errorf("session.window: %w", err)
	}
	if c.Session.PollInterval <= 0 {
		return errors.New("session.poll_interval must be > 0")
	}
	if c.Session.MaxCandles < 0 {
		return errors.New("session.max_candles must be >= 0")
	}

	switch mockgen.StampMode(c.Generator.Stamp) {
	case mockgen.StampFixed, mockgen.StampClock:
	default:
		return fmt.Errorf("generator.stamp must be %q or %q", mockgen.StampFixed, mockgen.StampClock)
	}
	if c.Generator.Interval <= 0 {
		return errors.New("generator.interval must be > 0")
	}

	if c.Feed.Enabled {
		if _, err := cron.ParseStandard(c.Feed.Schedule); err != nil {
			return fmt.Errorf("feed.schedule: %w", err)
		}
	}

	for i, s := range c.Symbols {
		if strings.TrimSpace(s.Code) == "" {
			return fmt.Errorf("symbols[%d].code is required", i)
		}
	}

	if c.Ingest.RateLimit <= 0 || c.Ingest.RateInterval <= 0 {
		return errors.New("ingest.rate_limit and ingest.rate_interval must be > 0")
	}
	return nil
}
