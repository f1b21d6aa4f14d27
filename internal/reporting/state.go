package reporting

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// ReportingState derives the market's current lifecycle phase from stored
// flags and the clock. It is a pure read with no side effects; predicates
// are evaluated in strict priority order and the first match wins.
func (m *Market) ReportingState() domain.ReportingState {
	now := m.clock.Now()

	// 1. A committed final winner is terminal.
	if m.finalWinner != (common.Hash{}) {
		return domain.StateFinalized
	}

	// 2. Another market in this universe is actively forking.
	u := m.window.Universe()
	forking := u.ForkingMarket()
	if forking != nil && forking.ID() != m.id {
		return domain.StateAwaitingForkMigration
	}

	// 3. Trading has not ended yet.
	if now.Before(m.endTime) {
		return domain.StatePreReporting
	}

	// 4. The designated reporter's exclusive window.
	designatedDeadline := m.endTime.Add(m.params.DesignatedReportingDuration)
	if m.hasDesignatedReporter() && m.designatedReportReceivedAt.IsZero() && now.Before(designatedDeadline) {
		return domain.StateDesignatedReporting
	}

	// 5. A designated report exists and stands undisputed.
	if !m.designatedReportReceivedAt.IsZero() && m.designatedBond == nil {
		if now.Before(m.designatedReportReceivedAt.Add(m.params.DesignatedDisputeDuration)) {
			return domain.StateDesignatedDispute
		}
		return domain.StateAwaitingFinalization
	}

	// 6. This market is itself the forking market.
	if forking != nil && forking.ID() == m.id {
		if m.winningPayoutHashFromFork() != (common.Hash{}) {
			return domain.StateAwaitingFinalization
		}
		return domain.StateForking
	}

	// 7. The reporting window has closed.
	if now.After(m.window.EndTime()) {
		if m.tentativeWinner == (common.Hash{}) {
			return domain.StateAwaitingNoReportMigration
		}
		return domain.StateAwaitingFinalization
	}

	// 8/9. Within the open window: the round is fixed by which bonds exist,
	// the phase by the window's dispute schedule. A dispute phase with no
	// tentative winner has nothing to dispute and stays a reporting phase.
	disputeOpen := m.window.IsDisputeActive(now) && m.tentativeWinner != (common.Hash{})
	if m.limitedBond != nil {
		if disputeOpen {
			return domain.StateAllDispute
		}
		return domain.StateAllReporting
	}
	if disputeOpen {
		return domain.StateLimitedDispute
	}
	return domain.StateLimitedReporting
}

// requireState fails with ErrWrongPhase unless the market is in want.
func (m *Market) requireState(want domain.ReportingState) error {
	if got := m.ReportingState(); got != want {
		return wrongPhase(want, got)
	}
	return nil
}
