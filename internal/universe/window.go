package universe

import (
	"time"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// ReportingWindow is one epoch of its universe. The first part of the window
// is the reporting phase, the tail the dispute phase. Windows only do
// attach/detach bookkeeping; they never drive market state.
type ReportingWindow struct {
	u     *Universe
	start time.Time

	markets map[string]domain.ForkSubject
	phases  map[string]domain.ReportingState
}

func newReportingWindow(u *Universe, start time.Time) *ReportingWindow {
	return &ReportingWindow{
		u:       u,
		start:   start,
		markets: make(map[string]domain.ForkSubject),
		phases:  make(map[string]domain.ReportingState),
	}
}

// Universe implements domain.ReportingWindow.
func (w *ReportingWindow) Universe() domain.Universe { return w.u }

// StartTime returns the window's opening instant.
func (w *ReportingWindow) StartTime() time.Time { return w.start }

// EndTime returns the window's closing instant.
func (w *ReportingWindow) EndTime() time.Time {
	return w.start.Add(w.u.params.WindowDuration)
}

// disputeStart is where the reporting phase hands over to the dispute phase.
func (w *ReportingWindow) disputeStart() time.Time {
	return w.EndTime().Add(-w.u.params.DisputePhaseDuration)
}

// IsReportingActive reports whether now falls in the reporting phase.
func (w *ReportingWindow) IsReportingActive(now time.Time) bool {
	return !now.Before(w.start) && now.Before(w.disputeStart())
}

// IsDisputeActive reports whether now falls in the dispute phase.
func (w *ReportingWindow) IsDisputeActive(now time.Time) bool {
	return !now.Before(w.disputeStart()) && now.Before(w.EndTime())
}

// IsForkingMarketFinalized reports whether the universe's forking market has
// committed a final winner.
func (w *ReportingWindow) IsForkingMarketFinalized() bool {
	w.u.mu.Lock()
	defer w.u.mu.Unlock()
	return w.u.forkingMarket != nil && w.u.forkingMarket.IsFinalized()
}

// UpdateMarketPhase records the market's last reported phase. Notify-only.
func (w *ReportingWindow) UpdateMarketPhase(marketID string, state domain.ReportingState) {
	w.u.mu.Lock()
	defer w.u.mu.Unlock()
	w.phases[marketID] = state
}

// AddMarket attaches a newly created market to the window.
func (w *ReportingWindow) AddMarket(m domain.ForkSubject) {
	w.u.mu.Lock()
	defer w.u.mu.Unlock()
	w.markets[m.ID()] = m
}

// RemoveMarket detaches a market from the window.
func (w *ReportingWindow) RemoveMarket(marketID string) {
	w.u.mu.Lock()
	defer w.u.mu.Unlock()
	delete(w.markets, marketID)
	delete(w.phases, marketID)
}

// MigrateMarketInFromSibling attaches a market arriving from another window
// of the same universe.
func (w *ReportingWindow) MigrateMarketInFromSibling(m domain.ForkSubject) {
	w.u.mu.Lock()
	defer w.u.mu.Unlock()
	w.markets[m.ID()] = m
}

// MigrateMarketInFromNibling attaches a market arriving across a fork, from
// a window of the parent universe.
func (w *ReportingWindow) MigrateMarketInFromNibling(m domain.ForkSubject) {
	w.u.mu.Lock()
	defer w.u.mu.Unlock()
	w.markets[m.ID()] = m
}

// MarketCount returns how many markets the window currently contains.
func (w *ReportingWindow) MarketCount() int {
	w.u.mu.Lock()
	defer w.u.mu.Unlock()
	return len(w.markets)
}

// Compile-time interface check.
var _ domain.ReportingWindow = (*ReportingWindow)(nil)
