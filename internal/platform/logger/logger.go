// Package logger はアプリケーション全体で使うslogロガーを構築します。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config はロガーの設定です。
type Config struct {
	Level  string // debug | info | warn | error
	Format string // json | text
}

// ParseLevel はレベル文字列をslog.Levelに変換します。空文字はinfo、"warning"はwarnの別名です。
// "debug+2" のようなslogのオフセット表記も受け付けます。
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		s = "warn"
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q: %w", s, err)
	}
	return l, nil
}

// NewWithWriter はwに出力するロガーを作成します。
func NewWithWriter(cfg Config, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	case FormatText:
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(h), nil
}

// New は標準エラー出力へのロガーを作成し、デフォルトロガーとして設定します。
func New(cfg Config) (*slog.Logger, error) {
	l, err := NewWithWriter(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}
