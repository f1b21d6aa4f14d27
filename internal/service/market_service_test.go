package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/alanyoungcy/resolvd/internal/crypto"
	"github.com/alanyoungcy/resolvd/internal/domain"
)

func TestCreateMarketPersistsSnapshot(t *testing.T) {
	e := newEnv(t)
	snap := e.createMarket(e.reporter)

	if snap.State != domain.StatePreReporting {
		t.Fatalf("expected PRE_REPORTING, got %s", snap.State)
	}
	if _, ok := e.registry.Get(snap.ID); !ok {
		t.Fatalf("aggregate not registered")
	}

	stored, err := e.markets.GetByID(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("snapshot not persisted: %v", err)
	}
	if stored.DesignatedReporter != e.reporter {
		t.Fatalf("stored reporter = %s, want %s", stored.DesignatedReporter, e.reporter)
	}
	if !contains(e.bus.payloads(), "market_created") {
		t.Fatalf("market_created event not published")
	}
}

func TestSubmitReportRecordsEventAndAnnounces(t *testing.T) {
	e := newEnv(t)
	snap := e.createMarket(e.reporter)
	h := e.hashOf(300, 0, 0)

	after := e.report(snap.ID, 300, 0, 0)
	if after.TentativeWinner != h {
		t.Fatalf("tentative winner = %s, want %s", after.TentativeWinner, h)
	}

	events, err := e.svc.StakeEvents(context.Background(), snap.ID, domain.ListOpts{})
	if err != nil {
		t.Fatalf("stake events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 stake event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != domain.EventDesignatedReport {
		t.Fatalf("event kind = %s", ev.Kind)
	}
	if ev.PayoutHash != h || ev.Actor != e.reporter {
		t.Fatalf("event actor/hash mismatch: %+v", ev)
	}
	if ev.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("event amount = %s, want 100", ev.Amount)
	}
	if !contains(e.bus.payloads(), "report_submitted") {
		t.Fatalf("report_submitted event not published")
	}

	// The stored snapshot moved with the aggregate.
	stored, err := e.markets.GetByID(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if stored.TentativeWinner != h {
		t.Fatalf("stored tentative winner = %s, want %s", stored.TentativeWinner, h)
	}
}

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSignedReportVerification(t *testing.T) {
	e := newEnvSigned(t, true)

	signer, err := crypto.NewSigner(testKeyHex)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	e.registry.Genesis().Rep().Mint(signer.Address(), big.NewInt(1_000_000))

	snap, err := e.svc.CreateMarket(context.Background(), CreateMarketParams{
		NumOutcomes:        3,
		NumTicks:           300,
		EndTime:            e.clock.now.Add(24 * time.Hour),
		Owner:              e.owner,
		DesignatedReporter: signer.Address(),
		CreatorFeeBps:      100,
	})
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	e.clock.set(snap.EndTime.Add(time.Hour))

	numerators := []int64{300, 0, 0}
	payout, err := domain.NewPayoutDistribution(numerators, 3, 300)
	if err != nil {
		t.Fatalf("build payout: %v", err)
	}

	if _, err := e.svc.SubmitReport(context.Background(), snap.ID, signer.Address(), numerators, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("missing signature: expected ErrUnauthorized, got %v", err)
	}

	// A signature over a different market must not verify.
	wrongSig, err := signer.SignReport("some-other-market", payout)
	if err != nil {
		t.Fatalf("sign report: %v", err)
	}
	if _, err := e.svc.SubmitReport(context.Background(), snap.ID, signer.Address(), numerators, wrongSig); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("wrong-market signature: expected ErrUnauthorized, got %v", err)
	}

	sig, err := signer.SignReport(snap.ID, payout)
	if err != nil {
		t.Fatalf("sign report: %v", err)
	}
	after, err := e.svc.SubmitReport(context.Background(), snap.ID, signer.Address(), numerators, sig)
	if err != nil {
		t.Fatalf("signed report rejected: %v", err)
	}
	if after.TentativeWinner != payout.Hash() {
		t.Fatalf("tentative winner = %s, want %s", after.TentativeWinner, payout.Hash())
	}
}

func TestDisputeMirrorsBondSlots(t *testing.T) {
	e := newEnv(t)
	snap := e.createMarket(e.reporter)
	e.report(snap.ID, 300, 0, 0)

	after, err := e.svc.Dispute(context.Background(), snap.ID, domain.RoundDesignated, e.disputer)
	if err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if after.State != domain.StateLimitedReporting {
		t.Fatalf("post-dispute state = %s", after.State)
	}

	bonds, err := e.bonds.ListByMarket(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("list bonds: %v", err)
	}
	if len(bonds) != 1 {
		t.Fatalf("expected 1 mirrored bond, got %d", len(bonds))
	}
	b := bonds[0]
	if b.Round != domain.RoundDesignated || b.Poster != e.disputer {
		t.Fatalf("bond mismatch: %+v", b)
	}
	if b.DisputedHash != e.hashOf(300, 0, 0) {
		t.Fatalf("bond disputed hash = %s", b.DisputedHash)
	}
	if b.Amount.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bond amount = %s, want 40", b.Amount)
	}
	if !contains(e.bus.payloads(), "dispute_posted") {
		t.Fatalf("dispute_posted event not published")
	}

	if _, err := e.svc.Dispute(context.Background(), snap.ID, domain.RoundDesignated, e.staker); !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("second designated dispute: expected ErrWrongPhase, got %v", err)
	}
}

func TestDisputeRejectsUnknownRound(t *testing.T) {
	e := newEnv(t)
	snap := e.createMarket(e.reporter)

	_, err := e.svc.Dispute(context.Background(), snap.ID, domain.DisputeRound("bogus"), e.disputer)
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestMutationBlockedWhileLockHeld(t *testing.T) {
	e := newEnv(t)
	snap := e.createMarket(e.reporter)
	e.clock.set(snap.EndTime.Add(time.Hour))

	e.locks.block()

	_, err := e.svc.SubmitReport(context.Background(), snap.ID, e.reporter, []int64{300, 0, 0}, "")
	if !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
}

func TestFinalizeCommitsWinner(t *testing.T) {
	e := newEnv(t)
	snap := e.createMarket(e.reporter)
	e.report(snap.ID, 0, 300, 0)

	// Let the designated dispute window lapse undisputed.
	e.clock.advance(3*24*time.Hour + time.Hour)

	after, err := e.svc.Finalize(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if after.State != domain.StateFinalized {
		t.Fatalf("state = %s, want FINALIZED", after.State)
	}
	if after.FinalWinner != e.hashOf(0, 300, 0) {
		t.Fatalf("final winner = %s", after.FinalWinner)
	}

	events, err := e.svc.StakeEvents(context.Background(), snap.ID, domain.ListOpts{})
	if err != nil {
		t.Fatalf("stake events: %v", err)
	}
	last := events[len(events)-1]
	if last.Kind != domain.EventFinalization {
		t.Fatalf("last event kind = %s", last.Kind)
	}
	if !contains(e.bus.payloads(), "market_finalized") {
		t.Fatalf("market_finalized event not published")
	}

	if _, err := e.svc.Finalize(context.Background(), snap.ID); !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("double finalize: expected ErrWrongPhase, got %v", err)
	}
}

func TestUnknownMarketIsNotFound(t *testing.T) {
	e := newEnv(t)

	if _, err := e.svc.SubmitReport(context.Background(), "nope", e.reporter, []int64{300, 0, 0}, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("report: expected ErrNotFound, got %v", err)
	}
	if _, err := e.svc.Finalize(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("finalize: expected ErrNotFound, got %v", err)
	}
	if _, err := e.svc.GetMarket(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
}

func TestListMarketsOrdersAndPaginates(t *testing.T) {
	e := newEnv(t)
	first := e.createMarket(e.reporter)
	e.clock.advance(time.Minute)
	second := e.createMarket(e.reporter)
	e.clock.advance(time.Minute)
	third := e.createMarket(e.reporter)

	all, err := e.svc.ListMarkets(context.Background(), domain.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 markets, got %d", len(all))
	}
	if all[0].ID != first.ID || all[2].ID != third.ID {
		t.Fatalf("unexpected order: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	page, err := e.svc.ListMarkets(context.Background(), domain.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != second.ID {
		t.Fatalf("expected page [%s], got %+v", second.ID, page)
	}

	empty, err := e.svc.ListMarkets(context.Background(), domain.ListOpts{Offset: 10})
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}

func TestMintStakeValidation(t *testing.T) {
	e := newEnv(t)

	if err := e.svc.MintStake(context.Background(), addr(9), nil); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("nil amount: expected ErrInvalidConfiguration, got %v", err)
	}
	if err := e.svc.MintStake(context.Background(), addr(9), big.NewInt(-5)); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("negative amount: expected ErrInvalidConfiguration, got %v", err)
	}

	if err := e.svc.MintStake(context.Background(), addr(9), big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := e.registry.Genesis().Rep().BalanceOf(addr(9)); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("balance = %s, want 500", got)
	}
}
