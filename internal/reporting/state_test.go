package reporting

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

func TestDesignatedLifecyclePhases(t *testing.T) {
	f := newFixture(t, true)

	f.requireState(domain.StatePreReporting)

	// Market end opens the designated reporter's exclusive window.
	f.clock.set(f.market.EndTime())
	f.requireState(domain.StateDesignatedReporting)

	// A report opens the designated dispute window.
	f.reportDesignated(300, 0, 0)
	f.requireState(domain.StateDesignatedDispute)

	// Undisputed past the dispute duration, the market is ready to finalize.
	f.clock.advance(f.market.params.DesignatedDisputeDuration)
	f.requireState(domain.StateAwaitingFinalization)
}

func TestDesignatedWindowExpiresIntoOpenReporting(t *testing.T) {
	f := newFixture(t, true)

	// No report arrives; once the designated window lapses the market falls
	// through to open (limited) reporting.
	f.clock.set(f.market.EndTime().Add(f.market.params.DesignatedReportingDuration))
	f.requireState(domain.StateLimitedReporting)

	if err := f.market.SubmitDesignatedReport(f.reporter, []int64{300, 0, 0}); !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase after window lapse, got %v", err)
	}
}

func TestNoDesignatedReporterGoesStraightToLimited(t *testing.T) {
	f := newFixture(t, false)

	f.requireState(domain.StatePreReporting)
	f.clock.set(f.market.EndTime())
	f.requireState(domain.StateLimitedReporting)
}

func TestDisputePhaseNeedsTentativeWinner(t *testing.T) {
	f := newFixture(t, false)

	// Inside the window's dispute tail but with no stake at all: there is
	// nothing to dispute, so the market stays in a reporting phase.
	w := f.market.Window()
	f.clock.set(w.EndTime().Add(-time.Hour))
	if !w.IsDisputeActive(f.clock.now) {
		t.Fatal("expected the window dispute phase to be active")
	}
	f.requireState(domain.StateLimitedReporting)
}

func TestWindowCloseBranchesOnTentativeWinner(t *testing.T) {
	f := newFixture(t, false)
	w := f.market.Window()

	// Closed with no reports: the market must move to a fresh window.
	f.clock.set(w.EndTime().Add(time.Hour))
	f.requireState(domain.StateAwaitingNoReportMigration)

	// Rewind, stake, close again: now it awaits finalization.
	f.clock.set(f.market.EndTime())
	if err := f.market.StakeOnOutcome(f.staker, []int64{0, 300, 0}, big.NewInt(50)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.clock.set(w.EndTime().Add(time.Hour))
	f.requireState(domain.StateAwaitingFinalization)
}

func TestOtherForkingMarketPreemptsEverything(t *testing.T) {
	f := newFixture(t, true)

	other, err := NewMarket(Config{
		ID:          "mkt-2",
		NumOutcomes: 2,
		NumTicks:    100,
		EndTime:     f.market.EndTime(),
		Owner:       f.owner,
		Window:      f.genesis.ReportingWindowByMarketEndTime(f.market.EndTime(), false),
		Clock:       f.clock,
		Params:      testParams(),
	})
	if err != nil {
		t.Fatalf("second market: %v", err)
	}
	if err := f.genesis.Fork(other); err != nil {
		t.Fatalf("fork: %v", err)
	}

	// Even pre-reporting, a foreign fork forces the migration state.
	f.requireState(domain.StateAwaitingForkMigration)
	f.clock.set(f.market.EndTime().Add(time.Hour))
	f.requireState(domain.StateAwaitingForkMigration)
}

func TestStateIsPureRead(t *testing.T) {
	f := newFixture(t, true)
	f.clock.set(f.market.EndTime())

	// The same instant always reads the same state, and reading does not
	// mutate the aggregate.
	for i := 0; i < 3; i++ {
		f.requireState(domain.StateDesignatedReporting)
	}
	f.clock.advance(-2 * time.Hour)
	f.requireState(domain.StatePreReporting)
}
