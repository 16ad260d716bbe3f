package code

import (
	"context"
	"log/slog"
	"time"
)

type expiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper permanently removes expired code rows on a fixed cadence.
// Matching never depends on the sweep — FindAndConsume checks expiry itself —
// so a missed run only delays garbage collection.
type Sweeper struct {
	store    expiredDeleter
	interval time.Duration
}

func NewSweeper(store expiredDeleter, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, interval: interval}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.DeleteExpired(ctx, time.Now())
			if err != nil {
				slog.Warn("expired-code sweep failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("swept expired codes", "deleted", n)
			}
		}
	}
}
