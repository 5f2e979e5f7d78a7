package revocation

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically removes expired ledger rows. Expired tokens already
// fail verification, so the sweep only keeps the table small.
type Reaper struct {
	ledger   Ledger
	interval time.Duration
	logger   *slog.Logger
}

func NewReaper(ledger Ledger, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reaper{ledger: ledger, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.sweep(ctx)
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Revocation reaper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	n, err := r.ledger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "Revocation sweep failed", slog.Any("error", err))
		}
		return
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Purged expired revocations", slog.Int64("rows", n))
	}
}
