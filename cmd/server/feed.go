package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

type ticker interface {
	Tick(ctx context.Context) error
}

// runFeed はフィードを一度更新した後、scheduleに従ってctxが終わるまで更新を続けます。
func runFeed(ctx context.Context, schedule string, feed ticker) error {
	if err := feed.Tick(ctx); err != nil {
		slog.Error("initial feed tick failed", "error", err)
	}

	l := cronLogger{}
	c := cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))
	if _, err := c.AddFunc(schedule, func() {
		if err := feed.Tick(ctx); err != nil {
			slog.Error("feed tick failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule feed %q: %w", schedule, err)
	}

	c.Start()
	slog.Info("feed scheduler started", "schedule", schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("feed scheduler stopped")
	return nil
}

// cronLogger はcronのログをslogに流します。
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
