package store

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper runs a background goroutine that periodically deletes expired
// chat contexts and pending actions. Reads already treat expired rows as
// absent; the sweeper only keeps the tables from accumulating dead rows.
func StartSweeper(ctx context.Context, s Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("State sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				deleted, err := s.SweepExpired(ctx)
				if err != nil {
					slog.Error("State sweeper failed", "error", err)
					continue
				}
				if deleted > 0 {
					slog.Info("State sweeper removed expired rows", "count", deleted)
				}
			case <-ctx.Done():
				slog.Info("State sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
