package index

import (
	"context"
	"log/slog"
	"time"

	"trustrent/core/types"
)

// EventSource yields committed journal pages.
type EventSource interface {
	ListEvents(ctx context.Context, after uint64, limit int) ([]types.JournalEntry, uint64, error)
}

// Poller follows the node journal from the persisted cursor.
type Poller struct {
	source    EventSource
	projector *Projector
	interval  time.Duration
	batch     int
	logger    *slog.Logger
}

func NewPoller(source EventSource, projector *Projector, interval time.Duration, batch int, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batch <= 0 {
		batch = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{source: source, projector: projector, interval: interval, batch: batch, logger: logger}
}

// SyncOnce drains every page available right now and returns the number of
// entries applied.
func (p *Poller) SyncOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		cursor, err := p.projector.Cursor(ctx)
		if err != nil {
			return total, err
		}
		entries, head, err := p.source.ListEvents(ctx, cursor, p.batch)
		if err != nil {
			return total, err
		}
		applied, err := p.projector.Apply(ctx, entries)
		total += applied
		if err != nil {
			return total, err
		}
		if len(entries) == 0 || len(entries) < p.batch || cursor+uint64(len(entries)) >= head {
			return total, nil
		}
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		applied, err := p.SyncOnce(ctx)
		if err != nil && ctx.Err() == nil {
			indexMetrics().pollErrors.Inc()
			p.logger.Warn("journal sync failed", slog.Any("error", err))
		} else if applied > 0 {
			p.logger.Debug("journal synced", slog.Int("applied", applied))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
