package ledger

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is a ledger that can release its expired holds eagerly.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// RunSweeper calls Sweep every interval until ctx is done. Expiry is also
// applied lazily on every ledger access, so the sweeper only shortens the
// time freed seats wait for a waitlist promotion.
func RunSweeper(ctx context.Context, sweeper Sweeper, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sweeper.Sweep(ctx); err != nil && ctx.Err() == nil {
				logger.Error("failed to sweep expired seat holds", "error", err)
			}
		}
	}
}
