// Package pipeline contains the long-running background jobs: the cold
// storage archiver runner lives here, the phase monitor in internal/service.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// Archiver drives periodic archive runs, moving old data from the database
// to object storage.
type Archiver struct {
	archiver      domain.Archiver
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver runner.
func NewArchiver(archiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		archiver:      archiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive run. The cutoff is now minus the configured
// retention period; finalized markets and stake events older than the cutoff
// move to cold storage.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	marketsArchived, err := a.archiver.ArchiveFinalizedMarkets(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archiving markets before %v: %w", cutoff, err)
	}

	eventsArchived, err := a.archiver.ArchiveStakeEvents(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archiving stake events before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("markets_archived", marketsArchived),
		slog.Int64("stake_events_archived", eventsArchived),
	)
	return nil
}

// RunInterval runs the archiver every interval until the context is
// cancelled. A failed run is logged and retried at the next tick.
func (a *Archiver) RunInterval(ctx context.Context, interval time.Duration) error {
	a.logger.InfoContext(ctx, "archiver started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.InfoContext(ctx, "archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
