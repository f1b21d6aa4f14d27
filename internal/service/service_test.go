package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
	"github.com/alanyoungcy/resolvd/internal/reporting"
	"github.com/alanyoungcy/resolvd/internal/universe"
)

// fakeClock is a manually advanced clock shared by the service, the
// aggregates, and the universe tree.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) set(t time.Time) { c.now = t }

func addr(b byte) common.Address {
	return common.Address{19: b}
}

// testParams mirrors the reporting package's shrunk bond ladder.
func testParams() reporting.Params {
	return reporting.Params{
		DesignatedReportingDuration: 3 * 24 * time.Hour,
		DesignatedDisputeDuration:   3 * 24 * time.Hour,
		DesignatedReporterStake:     big.NewInt(100),
		DesignatedDisputeBond:       big.NewInt(40),
		LimitedDisputeBond:          big.NewInt(400),
		AllDisputeBond:              big.NewInt(4000),
		ReportingFeeBps:             1,
	}
}

// ---------------------------------------------------------------------------
// in-memory store fakes
// ---------------------------------------------------------------------------

type memMarketStore struct {
	mu   sync.Mutex
	rows map[string]domain.Market
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{rows: make(map[string]domain.Market)}
}

func (s *memMarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[m.ID] = m
	return nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) ListByState(_ context.Context, state domain.ReportingState, _ domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.rows {
		if m.State == state {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMarketStore) ListUnfinalized(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.rows {
		if !m.Finalized() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMarketStore) ListFinalizedBefore(_ context.Context, cutoff time.Time, _ domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.rows {
		if m.Finalized() && m.FinalizedAt != nil && m.FinalizedAt.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMarketStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

type memBondStore struct {
	mu   sync.Mutex
	rows map[string][]domain.DisputeBond // by market id
}

func newMemBondStore() *memBondStore {
	return &memBondStore{rows: make(map[string][]domain.DisputeBond)}
}

func (s *memBondStore) Create(_ context.Context, b domain.DisputeBond) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[b.MarketID] = append(s.rows[b.MarketID], b)
	return nil
}

func (s *memBondStore) DeleteByMarket(_ context.Context, marketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, marketID)
	return nil
}

func (s *memBondStore) ListByMarket(_ context.Context, marketID string) ([]domain.DisputeBond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DisputeBond(nil), s.rows[marketID]...), nil
}

func (s *memBondStore) GetByID(_ context.Context, id string) (domain.DisputeBond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bonds := range s.rows {
		for _, b := range bonds {
			if b.ID == id {
				return b, nil
			}
		}
	}
	return domain.DisputeBond{}, domain.ErrNotFound
}

type memEventStore struct {
	mu   sync.Mutex
	rows []domain.StakeEvent
}

func (s *memEventStore) Insert(_ context.Context, ev domain.StakeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, ev)
	return nil
}

func (s *memEventStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.StakeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StakeEvent
	for _, ev := range s.rows {
		if ev.MarketID == marketID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memEventStore) ListBefore(_ context.Context, cutoff time.Time, _ domain.ListOpts) ([]domain.StakeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StakeEvent
	for _, ev := range s.rows {
		if ev.CreatedAt.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memEventStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.StakeEvent
	var deleted int64
	for _, ev := range s.rows {
		if ev.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.rows = kept
	return deleted, nil
}

type memAuditStore struct {
	mu   sync.Mutex
	rows []domain.AuditEntry
}

func (s *memAuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, domain.AuditEntry{
		ID:     int64(len(s.rows) + 1),
		Event:  event,
		Detail: detail,
	})
	return nil
}

func (s *memAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.rows...), nil
}

func (s *memAuditStore) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rows))
	for _, e := range s.rows {
		out = append(out, e.Event)
	}
	return out
}

// memBus records published payloads and fans them out to subscribers.
type memBus struct {
	mu        sync.Mutex
	published [][]byte
	streams   map[string][][]byte
	subs      []chan []byte
}

func newMemBus() *memBus {
	return &memBus{streams: make(map[string][][]byte)}
}

func (b *memBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, payload)
	for _, ch := range b.subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *memBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 64)
	b.subs = append(b.subs, ch)
	return ch, nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

func (b *memBus) StreamRead(_ context.Context, stream string, _ string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for i, p := range b.streams[stream] {
		if count > 0 && len(out) >= count {
			break
		}
		out = append(out, domain.StreamMessage{ID: strconv.Itoa(i), Payload: p})
	}
	return out, nil
}

// payloads returns every published payload as strings for substring checks.
func (b *memBus) payloads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.published))
	for _, p := range b.published {
		out = append(out, string(p))
	}
	return out
}

// memLocks is an in-process LockManager. Setting blocked simulates another
// replica holding every lock.
type memLocks struct {
	mu      sync.Mutex
	held    map[string]bool
	blocked bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]bool)}
}

func (l *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.blocked || l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held[key] = false
	}, nil
}

func (l *memLocks) block() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocked = true
}

func (l *memLocks) unblock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocked = false
}

// ---------------------------------------------------------------------------
// fixture
// ---------------------------------------------------------------------------

type env struct {
	t        *testing.T
	clock    *fakeClock
	registry *Registry
	svc      *MarketService

	markets *memMarketStore
	bonds   *memBondStore
	events  *memEventStore
	audit   *memAuditStore
	bus     *memBus
	locks   *memLocks

	owner    common.Address
	reporter common.Address
	disputer common.Address
	staker   common.Address
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvSigned(t, false)
}

func newEnvSigned(t *testing.T, requireSigned bool) *env {
	t.Helper()

	e := &env{
		t:        t,
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		markets:  newMemMarketStore(),
		bonds:    newMemBondStore(),
		events:   &memEventStore{},
		audit:    &memAuditStore{},
		bus:      newMemBus(),
		locks:    newMemLocks(),
		owner:    addr(1),
		reporter: addr(2),
		disputer: addr(3),
		staker:   addr(4),
	}
	genesis := universe.NewGenesis(e.clock, universe.DefaultParams())
	for _, a := range []common.Address{e.owner, e.reporter, e.disputer, e.staker} {
		genesis.Rep().Mint(a, big.NewInt(1_000_000))
	}
	e.registry = NewRegistry(genesis)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.svc = NewMarketService(
		e.registry, e.markets, e.bonds, e.events, e.audit,
		e.bus, e.locks, e.clock, testParams(), requireSigned, logger,
	)
	return e
}

// createMarket creates a three-outcome market ending a day from now. When
// reporter is the zero address the market has no designated reporter.
func (e *env) createMarket(reporter common.Address) domain.Market {
	e.t.Helper()
	snap, err := e.svc.CreateMarket(context.Background(), CreateMarketParams{
		NumOutcomes:        3,
		NumTicks:           300,
		EndTime:            e.clock.now.Add(24 * time.Hour),
		Owner:              e.owner,
		DesignatedReporter: reporter,
		CreatorFeeBps:      100,
	})
	if err != nil {
		e.t.Fatalf("create market: %v", err)
	}
	return snap
}

// report advances past market end and submits the designated report.
func (e *env) report(marketID string, numerators ...int64) domain.Market {
	e.t.Helper()
	m, ok := e.registry.Get(marketID)
	if !ok {
		e.t.Fatalf("market %s not registered", marketID)
	}
	if e.clock.now.Before(m.EndTime()) {
		e.clock.set(m.EndTime().Add(time.Hour))
	}
	snap, err := e.svc.SubmitReport(context.Background(), marketID, e.reporter, numerators, "")
	if err != nil {
		e.t.Fatalf("submit report: %v", err)
	}
	return snap
}

// hashOf builds a validated distribution for the standard market shape.
func (e *env) hashOf(numerators ...int64) common.Hash {
	e.t.Helper()
	p, err := domain.NewPayoutDistribution(numerators, 3, 300)
	if err != nil {
		e.t.Fatalf("build payout: %v", err)
	}
	return p.Hash()
}

// contains reports whether any payload carries the substring.
func contains(payloads []string, needle string) bool {
	for _, s := range payloads {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
