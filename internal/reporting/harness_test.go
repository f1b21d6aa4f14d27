package reporting

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
	"github.com/alanyoungcy/resolvd/internal/universe"
)

// fakeClock is a manually advanced clock shared by the market and its
// universe tree.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) set(t time.Time) { c.now = t }

// testParams shrinks the bond ladder to readable integers while keeping the
// 10x escalation shape and the real durations.
func testParams() Params {
	return Params{
		DesignatedReportingDuration: 3 * 24 * time.Hour,
		DesignatedDisputeDuration:   3 * 24 * time.Hour,
		DesignatedReporterStake:     big.NewInt(100),
		DesignatedDisputeBond:       big.NewInt(40),
		LimitedDisputeBond:          big.NewInt(400),
		AllDisputeBond:              big.NewInt(4000),
		ReportingFeeBps:             1,
	}
}

func addr(b byte) common.Address {
	return common.Address{19: b}
}

type fixture struct {
	t       *testing.T
	clock   *fakeClock
	genesis *universe.Universe
	market  *Market

	owner    common.Address
	reporter common.Address
	disputer common.Address
	staker   common.Address
}

// newFixture builds a genesis universe with funded actors and one market
// ending a day after the base time. With designated=true the reporter address
// is the market's designated reporter.
func newFixture(t *testing.T, designated bool) *fixture {
	t.Helper()

	f := &fixture{
		t:        t,
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		owner:    addr(1),
		reporter: addr(2),
		disputer: addr(3),
		staker:   addr(4),
	}
	f.genesis = universe.NewGenesis(f.clock, universe.DefaultParams())
	for _, a := range []common.Address{f.owner, f.reporter, f.disputer, f.staker} {
		f.genesis.Rep().Mint(a, big.NewInt(1_000_000))
	}

	endTime := f.clock.now.Add(24 * time.Hour)
	w := f.genesis.ReportingWindowByMarketEndTime(endTime, designated)

	var dr common.Address
	if designated {
		dr = f.reporter
	}
	m, err := NewMarket(Config{
		ID:                 "mkt-1",
		NumOutcomes:        3,
		NumTicks:           300,
		EndTime:            endTime,
		Owner:              f.owner,
		DesignatedReporter: dr,
		CreatorFeeBps:      100,
		Window:             w,
		Clock:              f.clock,
		Params:             testParams(),
	})
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	f.market = m
	return f
}

// requireState fails the test unless the market reads as want.
func (f *fixture) requireState(want domain.ReportingState) {
	f.t.Helper()
	if got := f.market.ReportingState(); got != want {
		f.t.Fatalf("expected state %s, got %s", want, got)
	}
}

// payoutHash builds a validated distribution for the fixture market shape and
// returns its hash.
func (f *fixture) payoutHash(numerators ...int64) common.Hash {
	f.t.Helper()
	p, err := domain.NewPayoutDistribution(numerators, f.market.NumOutcomes(), f.market.NumTicks())
	if err != nil {
		f.t.Fatalf("build payout: %v", err)
	}
	return p.Hash()
}

// reportDesignated advances past market end and submits the designated report.
func (f *fixture) reportDesignated(numerators ...int64) {
	f.t.Helper()
	if f.clock.now.Before(f.market.EndTime()) {
		f.clock.set(f.market.EndTime().Add(time.Hour))
	}
	if err := f.market.SubmitDesignatedReport(f.reporter, numerators); err != nil {
		f.t.Fatalf("designated report: %v", err)
	}
}
