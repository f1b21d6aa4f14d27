package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/resolvd/internal/domain"
	"github.com/alanyoungcy/resolvd/internal/reporting"
)

// PhaseMonitor sweeps the live markets on a ticker: it publishes phase
// transitions as they become visible and drives the operations that need no
// human actor, finalization and the two migration kinds.
type PhaseMonitor struct {
	svc      *MarketService
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last map[string]domain.ReportingState
}

// NewPhaseMonitor creates a PhaseMonitor sweeping at the given interval.
func NewPhaseMonitor(svc *MarketService, interval time.Duration, logger *slog.Logger) *PhaseMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PhaseMonitor{
		svc:      svc,
		interval: interval,
		logger:   logger.With(slog.String("component", "phase_monitor")),
		last:     make(map[string]domain.ReportingState),
	}
}

// Run sweeps until the context is cancelled. Call in a goroutine.
func (pm *PhaseMonitor) Run(ctx context.Context) error {
	pm.logger.InfoContext(ctx, "phase monitor started", slog.Duration("interval", pm.interval))

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pm.logger.InfoContext(ctx, "phase monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			pm.Sweep(ctx)
		}
	}
}

// Sweep inspects every live market once. Exported so the serve path can run
// an immediate sweep at startup instead of waiting out the first tick.
func (pm *PhaseMonitor) Sweep(ctx context.Context) {
	for _, m := range pm.svc.registry.All() {
		pm.observe(ctx, m)
		pm.act(ctx, m)
	}
}

// observe publishes a phase-change event and refreshes the stored snapshot
// when a market's derived state has moved since the last sweep.
func (pm *PhaseMonitor) observe(ctx context.Context, m *reporting.Market) {
	state := m.ReportingState()

	pm.mu.Lock()
	prev, seen := pm.last[m.ID()]
	pm.last[m.ID()] = state
	pm.mu.Unlock()

	if seen && prev == state {
		return
	}

	// The state column in the snapshot store is derived from the clock, so
	// it goes stale between operations; refresh it on every transition.
	if unlock, err := pm.svc.lockTree(ctx); err == nil {
		if _, err := pm.svc.persist(ctx, m, domain.StakeEvent{}); err != nil {
			pm.logger.WarnContext(ctx, "snapshot refresh failed",
				slog.String("market_id", m.ID()),
				slog.String("error", err.Error()),
			)
		}
		unlock()
	} else if !errors.Is(err, domain.ErrLockHeld) {
		pm.logger.WarnContext(ctx, "snapshot refresh lock failed",
			slog.String("market_id", m.ID()),
			slog.String("error", err.Error()),
		)
	}

	if !seen {
		return
	}

	pm.logger.InfoContext(ctx, "market phase changed",
		slog.String("market_id", m.ID()),
		slog.String("from", string(prev)),
		slog.String("to", string(state)),
	)
	pm.svc.announce(ctx, "phase_changed", map[string]any{
		"market_id": m.ID(),
		"from":      string(prev),
		"to":        string(state),
	})
}

// act drives the actorless transitions: finalization once the dispute tail
// has passed, and migrations once they are due.
func (pm *PhaseMonitor) act(ctx context.Context, m *reporting.Market) {
	var err error
	switch m.ReportingState() {
	case domain.StateAwaitingFinalization:
		_, err = pm.svc.Finalize(ctx, m.ID())
	case domain.StateAwaitingNoReportMigration, domain.StateAwaitingForkMigration:
		_, err = pm.svc.Migrate(ctx, m.ID())
	default:
		return
	}

	switch {
	case err == nil:
		pm.logger.InfoContext(ctx, "market advanced",
			slog.String("market_id", m.ID()),
			slog.String("state", string(m.ReportingState())),
		)
	case errors.Is(err, domain.ErrUnresolvedFork),
		errors.Is(err, domain.ErrLockHeld),
		errors.Is(err, domain.ErrWrongPhase):
		// Not due yet, or another replica got there first; next sweep retries.
		pm.logger.DebugContext(ctx, "market not ready to advance",
			slog.String("market_id", m.ID()),
			slog.String("error", err.Error()),
		)
	default:
		pm.logger.ErrorContext(ctx, "market advance failed",
			slog.String("market_id", m.ID()),
			slog.String("error", err.Error()),
		)
	}
}
