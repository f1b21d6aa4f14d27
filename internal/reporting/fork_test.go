package reporting

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// forkFixture drives the fixture market through limited and all disputes so
// the genesis universe is forking on it, with h2 the tentative winner.
func forkFixture(t *testing.T) (*fixture, common.Hash) {
	t.Helper()
	f := newFixture(t, false)
	f.clock.set(f.market.EndTime())
	if err := f.market.StakeOnOutcome(f.staker, []int64{0, 300, 0}, big.NewInt(10_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.clock.set(f.market.Window().EndTime().Add(-time.Hour))
	if _, err := f.market.DisputeLimitedReporters(f.disputer); err != nil {
		t.Fatalf("limited dispute: %v", err)
	}
	f.clock.set(f.market.Window().EndTime().Add(-time.Hour))
	if _, err := f.market.DisputeAllReporters(f.owner); err != nil {
		t.Fatalf("all dispute: %v", err)
	}
	return f, f.payoutHash(0, 300, 0)
}

func TestForkResolvesOnStakeMajorityBeforeDeadline(t *testing.T) {
	f, h2 := forkFixture(t)
	f.requireState(domain.StateForking)

	rep := f.genesis.Rep()
	supply := rep.TotalSupply()

	// A sub-majority migration does not resolve the fork.
	whale := addr(8)
	rep.Mint(whale, supply) // doubles total supply, whale holds exactly half
	if err := rep.MigrateToChild(whale, h2, big.NewInt(1000)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	f.requireState(domain.StateForking)
	if err := f.market.TryFinalize(); !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase before majority, got %v", err)
	}

	// Migrating the rest of the whale's balance reaches half of total supply:
	// twice the migrated stake equals the pre-fork supply, which counts as a
	// majority, and the fork resolves before its deadline.
	if err := rep.MigrateToChild(whale, h2, rep.BalanceOf(whale)); err != nil {
		t.Fatalf("migrate remainder: %v", err)
	}
	f.requireState(domain.StateAwaitingFinalization)

	if err := f.market.TryFinalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !f.market.IsFinalized() {
		t.Fatal("expected market finalized")
	}
	if f.market.FinalPayoutHash() != h2 {
		t.Fatal("fork winner should be the top migration destination's key")
	}
}

func TestForkResolvesAtDeadlineWithoutMajority(t *testing.T) {
	f, h2 := forkFixture(t)
	rep := f.genesis.Rep()

	if err := rep.MigrateToChild(f.staker, h2, big.NewInt(1)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	f.requireState(domain.StateForking)

	// One instant before the deadline the majority rule still applies.
	f.clock.set(f.genesis.ForkEndTime().Add(-time.Second))
	f.requireState(domain.StateForking)

	// At the deadline the supply check is bypassed and the leader wins.
	f.clock.set(f.genesis.ForkEndTime())
	f.requireState(domain.StateAwaitingFinalization)
	if err := f.market.TryFinalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if f.market.FinalPayoutHash() != h2 {
		t.Fatal("sole destination should win at the deadline")
	}
}

func TestForkWithNoMigrationNeverResolvesEarly(t *testing.T) {
	f, _ := forkFixture(t)
	f.requireState(domain.StateForking)

	// Even past the deadline there is no destination to crown.
	f.clock.set(f.genesis.ForkEndTime().Add(time.Hour))
	f.requireState(domain.StateForking)
}

func TestFollowerMigratesAcrossResolvedFork(t *testing.T) {
	f, h2 := forkFixture(t)

	// A second market in the same universe, already carrying dispute state.
	follower, err := NewMarket(Config{
		ID:                 "mkt-follower",
		NumOutcomes:        2,
		NumTicks:           100,
		EndTime:            f.clock.now.Add(time.Hour),
		Owner:              f.owner,
		DesignatedReporter: f.reporter,
		Window:             f.genesis.ReportingWindowByMarketEndTime(f.clock.now.Add(time.Hour), true),
		Clock:              f.clock,
		Params:             testParams(),
	})
	if err != nil {
		t.Fatalf("follower: %v", err)
	}
	if follower.ReportingState() != domain.StateAwaitingForkMigration {
		t.Fatalf("follower state = %s, want %s", follower.ReportingState(), domain.StateAwaitingForkMigration)
	}

	// Migration is blocked until the forking market finalizes.
	if _, err := follower.MigrateThroughOneFork(); !errors.Is(err, domain.ErrUnresolvedFork) {
		t.Fatalf("expected ErrUnresolvedFork, got %v", err)
	}

	// Resolve the fork at its deadline and finalize the forking market.
	rep := f.genesis.Rep()
	if err := rep.MigrateToChild(f.staker, h2, big.NewInt(1)); err != nil {
		t.Fatalf("migrate stake: %v", err)
	}
	f.clock.set(f.genesis.ForkEndTime())
	if err := f.market.TryFinalize(); err != nil {
		t.Fatalf("finalize forking market: %v", err)
	}

	moved, err := follower.MigrateThroughOneFork()
	if err != nil {
		t.Fatalf("follower migration: %v", err)
	}
	if !moved {
		t.Fatal("expected the follower to move")
	}

	child := follower.Window().Universe()
	if child.ID() == f.genesis.ID() {
		t.Fatal("follower should now live in a child universe")
	}
	if child.ParentPayoutDistributionHash() != h2 {
		t.Fatal("follower should land in the winning child")
	}

	// Migration restarts the lifecycle: fresh end time, no dispute state.
	if !follower.EndTime().Equal(f.clock.now) {
		t.Fatal("end time should reset to the migration instant")
	}
	if follower.TentativeWinner() != (common.Hash{}) || follower.SecondPlace() != (common.Hash{}) {
		t.Fatal("winner slots should reset")
	}
	if len(follower.Bonds()) != 0 {
		t.Fatal("bond slots should reset")
	}
	if !follower.DesignatedReportReceivedAt().IsZero() {
		t.Fatal("designated report timestamp should reset")
	}
	if follower.ReportingState() != domain.StateDesignatedReporting {
		t.Fatalf("follower state = %s, want fresh designated reporting", follower.ReportingState())
	}

	// A second call is a no-op: the child universe is not forking.
	moved, err = follower.MigrateThroughOneFork()
	if err != nil || moved {
		t.Fatalf("expected stable no-op, got moved=%v err=%v", moved, err)
	}
}

func TestWorkflowOpsDrainForkMigrationsFirst(t *testing.T) {
	f, h2 := forkFixture(t)

	follower, err := NewMarket(Config{
		ID:                 "mkt-follower",
		NumOutcomes:        2,
		NumTicks:           100,
		EndTime:            f.clock.now.Add(time.Hour),
		Owner:              f.owner,
		DesignatedReporter: f.reporter,
		Window:             f.genesis.ReportingWindowByMarketEndTime(f.clock.now.Add(time.Hour), true),
		Clock:              f.clock,
		Params:             testParams(),
	})
	if err != nil {
		t.Fatalf("follower: %v", err)
	}

	// While the fork is unresolved every workflow operation surfaces it.
	if err := follower.SubmitDesignatedReport(f.reporter, []int64{100, 0}); !errors.Is(err, domain.ErrUnresolvedFork) {
		t.Fatalf("expected ErrUnresolvedFork from report, got %v", err)
	}
	if err := follower.TryFinalize(); !errors.Is(err, domain.ErrUnresolvedFork) {
		t.Fatalf("expected ErrUnresolvedFork from finalize, got %v", err)
	}

	// Once resolved, the operation itself performs the migration and then
	// proceeds in the child universe.
	rep := f.genesis.Rep()
	if err := rep.MigrateToChild(f.staker, h2, big.NewInt(1)); err != nil {
		t.Fatalf("migrate stake: %v", err)
	}
	f.clock.set(f.genesis.ForkEndTime())
	if err := f.market.TryFinalize(); err != nil {
		t.Fatalf("finalize forking market: %v", err)
	}

	// Fund the reporter in the child universe so the report can stake.
	child := f.genesis.GetOrCreateChildUniverse(h2)
	childRep, ok := child.ReputationToken().(interface {
		Mint(addr common.Address, amount *big.Int)
	})
	if !ok {
		t.Fatal("child reputation token should support minting")
	}
	childRep.Mint(f.reporter, big.NewInt(1_000_000))

	if err := follower.SubmitDesignatedReport(f.reporter, []int64{100, 0}); err != nil {
		t.Fatalf("report after implicit migration: %v", err)
	}
	if follower.Window().Universe().ID() == f.genesis.ID() {
		t.Fatal("report should have migrated the follower first")
	}
}
