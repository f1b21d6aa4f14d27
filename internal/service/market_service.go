package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/resolvd/internal/crypto"
	"github.com/alanyoungcy/resolvd/internal/domain"
	"github.com/alanyoungcy/resolvd/internal/reporting"
)

const (
	// lifecycleChannel carries live lifecycle events for pub/sub consumers
	// such as the websocket hub.
	lifecycleChannel = "resolvd:lifecycle"

	// lifecycleStream is the durable, trimmed copy of the same events.
	lifecycleStream = "resolvd:lifecycle:stream"

	// lockTTL bounds how long a crashed replica can hold a universe lock.
	lockTTL = 10 * time.Second
)

// MarketService runs the reporting lifecycle: it owns the live aggregates,
// serializes mutation per universe tree through the lock manager, and keeps
// the snapshot store, event log, audit log, and signal bus in step with every
// operation.
type MarketService struct {
	registry *Registry
	markets  domain.MarketStore
	bonds    domain.DisputeBondStore
	events   domain.StakeEventStore
	audit    domain.AuditStore
	bus      domain.SignalBus
	locks    domain.LockManager
	clock    domain.Clock
	params   reporting.Params

	// requireSigned gates designated reports on a recoverable secp256k1
	// signature from the designated reporter.
	requireSigned bool

	logger *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	registry *Registry,
	markets domain.MarketStore,
	bonds domain.DisputeBondStore,
	events domain.StakeEventStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	locks domain.LockManager,
	clock domain.Clock,
	params reporting.Params,
	requireSigned bool,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		registry:      registry,
		markets:       markets,
		bonds:         bonds,
		events:        events,
		audit:         audit,
		bus:           bus,
		locks:         locks,
		clock:         clock,
		params:        params,
		requireSigned: requireSigned,
		logger:        logger.With(slog.String("component", "market_service")),
	}
}

// CreateMarketParams carries the immutable configuration of a new market.
type CreateMarketParams struct {
	NumOutcomes        int
	NumTicks           int64
	EndTime            time.Time
	Owner              common.Address
	DesignatedReporter common.Address
	CreatorFeeBps      int64
}

// CreateMarket initializes a market in the genesis universe tree, assigns it
// to the reporting window matching its end time, and persists the first
// snapshot.
func (s *MarketService) CreateMarket(ctx context.Context, p CreateMarketParams) (domain.Market, error) {
	unlock, err := s.lockTree(ctx)
	if err != nil {
		return domain.Market{}, err
	}
	defer unlock()

	genesis := s.registry.Genesis()
	window := genesis.ReportingWindowByMarketEndTime(p.EndTime, p.DesignatedReporter != (common.Address{}))

	m, err := reporting.NewMarket(reporting.Config{
		NumOutcomes:        p.NumOutcomes,
		NumTicks:           p.NumTicks,
		EndTime:            p.EndTime,
		Owner:              p.Owner,
		DesignatedReporter: p.DesignatedReporter,
		CreatorFeeBps:      p.CreatorFeeBps,
		Window:             window,
		Clock:              s.clock,
		Params:             s.params,
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: create market: %w", err)
	}
	s.registry.Add(m)

	snap := m.Snapshot()
	if err := s.markets.Upsert(ctx, snap); err != nil {
		return domain.Market{}, fmt.Errorf("service: persist market %s: %w", m.ID(), err)
	}

	s.announce(ctx, "market_created", map[string]any{
		"market_id":    m.ID(),
		"universe_id":  snap.UniverseID,
		"num_outcomes": p.NumOutcomes,
		"num_ticks":    p.NumTicks,
		"end_time":     p.EndTime.Format(time.RFC3339),
		"owner":        p.Owner.Hex(),
	})
	return snap, nil
}

// SubmitReport records the designated reporter's report. When signature
// verification is enabled the signature must recover to the reporter over
// this market id and distribution.
func (s *MarketService) SubmitReport(ctx context.Context, marketID string, reporter common.Address, numerators []int64, signature string) (domain.Market, error) {
	m, unlock, err := s.lockMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	defer unlock()

	if s.requireSigned {
		if err := s.verifyReportSignature(m, reporter, numerators, signature); err != nil {
			return domain.Market{}, err
		}
	}

	if err := m.SubmitDesignatedReport(reporter, numerators); err != nil {
		return domain.Market{}, err
	}

	payout, err := domain.NewPayoutDistribution(numerators, m.NumOutcomes(), m.NumTicks())
	if err != nil {
		return domain.Market{}, err
	}
	hash := payout.Hash()

	snap, err := s.persist(ctx, m, domain.StakeEvent{
		Kind:       domain.EventDesignatedReport,
		Actor:      reporter,
		PayoutHash: hash,
		Amount:     s.params.DesignatedReporterStake,
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.announce(ctx, "report_submitted", map[string]any{
		"market_id":   marketID,
		"reporter":    reporter.Hex(),
		"payout_hash": hash.Hex(),
	})
	return snap, nil
}

// Stake backs a distribution with reputation during an open reporting phase.
func (s *MarketService) Stake(ctx context.Context, marketID string, staker common.Address, numerators []int64, amount *big.Int) (domain.Market, error) {
	m, unlock, err := s.lockMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	defer unlock()

	if err := m.StakeOnOutcome(staker, numerators, amount); err != nil {
		return domain.Market{}, err
	}

	payout, err := domain.NewPayoutDistribution(numerators, m.NumOutcomes(), m.NumTicks())
	if err != nil {
		return domain.Market{}, err
	}
	hash := payout.Hash()

	snap, err := s.persist(ctx, m, domain.StakeEvent{
		Kind:       domain.EventStake,
		Actor:      staker,
		PayoutHash: hash,
		Amount:     amount,
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.announce(ctx, "stake_placed", map[string]any{
		"market_id":   marketID,
		"staker":      staker.Hex(),
		"payout_hash": hash.Hex(),
		"amount":      amount.String(),
	})
	return snap, nil
}

// Dispute posts the bond for the given round against the current tentative
// winner. The limited round escalates the market to the next window; the all
// round forks the universe.
func (s *MarketService) Dispute(ctx context.Context, marketID string, round domain.DisputeRound, disputer common.Address) (domain.Market, error) {
	if !round.Valid() {
		return domain.Market{}, fmt.Errorf("service: unknown dispute round %q: %w", round, domain.ErrInvalidConfiguration)
	}

	m, unlock, err := s.lockMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	defer unlock()

	var bond *domain.DisputeBond
	switch round {
	case domain.RoundDesignated:
		bond, err = m.DisputeDesignatedReport(disputer)
	case domain.RoundLimited:
		bond, err = m.DisputeLimitedReporters(disputer)
	case domain.RoundAll:
		bond, err = m.DisputeAllReporters(disputer)
	}
	if err != nil {
		return domain.Market{}, err
	}

	snap, err := s.persist(ctx, m, domain.StakeEvent{
		Kind:       domain.EventDispute,
		Actor:      disputer,
		PayoutHash: bond.DisputedHash,
		Amount:     bond.Amount,
		Round:      round,
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.announce(ctx, "dispute_posted", map[string]any{
		"market_id":     marketID,
		"round":         string(round),
		"disputer":      disputer.Hex(),
		"bond_id":       bond.ID,
		"disputed_hash": bond.DisputedHash.Hex(),
		"amount":        bond.Amount.String(),
	})
	return snap, nil
}

// Finalize commits the tentative winner as final and settles dispute bonds.
func (s *MarketService) Finalize(ctx context.Context, marketID string) (domain.Market, error) {
	m, unlock, err := s.lockMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	defer unlock()

	if err := m.TryFinalize(); err != nil {
		return domain.Market{}, err
	}

	snap, err := s.persist(ctx, m, domain.StakeEvent{
		Kind:       domain.EventFinalization,
		PayoutHash: m.FinalPayoutHash(),
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.announce(ctx, "market_finalized", map[string]any{
		"market_id":   marketID,
		"final_hash":  m.FinalPayoutHash().Hex(),
		"finalized":   m.FinalizedAt().Format(time.RFC3339),
		"universe_id": snap.UniverseID,
	})
	return snap, nil
}

// Migrate advances a market that is waiting on a migration: through any
// resolved forks above it, or into the next window after a no-report epoch.
func (s *MarketService) Migrate(ctx context.Context, marketID string) (domain.Market, error) {
	m, unlock, err := s.lockMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	defer unlock()

	switch m.ReportingState() {
	case domain.StateAwaitingNoReportMigration:
		if err := m.MigrateDueToNoReports(); err != nil {
			return domain.Market{}, err
		}
	default:
		// MigrateThroughAllForks is a no-op when nothing is pending and
		// surfaces ErrUnresolvedFork while the fork above is still open.
		if err := m.MigrateThroughAllForks(); err != nil {
			return domain.Market{}, err
		}
	}

	snap, err := s.persist(ctx, m, domain.StakeEvent{
		Kind: domain.EventMigration,
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.announce(ctx, "market_migrated", map[string]any{
		"market_id":   marketID,
		"universe_id": snap.UniverseID,
		"state":       string(snap.State),
	})
	return snap, nil
}

// SetCreatorFee lowers the market creator's settlement fee. Owner-gated.
func (s *MarketService) SetCreatorFee(ctx context.Context, marketID string, caller common.Address, feeBps int64) (domain.Market, error) {
	m, unlock, err := s.lockMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	defer unlock()

	if err := m.SetCreatorFee(caller, feeBps); err != nil {
		return domain.Market{}, err
	}

	snap, err := s.persist(ctx, m, domain.StakeEvent{})
	if err != nil {
		return domain.Market{}, err
	}

	s.announce(ctx, "creator_fee_lowered", map[string]any{
		"market_id": marketID,
		"fee_bps":   feeBps,
	})
	return snap, nil
}

// MintStake provisions reputation for an address in the genesis universe.
// Supply provisioning is an operator action, not part of the public surface.
func (s *MarketService) MintStake(ctx context.Context, addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("service: mint amount must be positive: %w", domain.ErrInvalidConfiguration)
	}

	unlock, err := s.lockTree(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	s.registry.Genesis().Rep().Mint(addr, amount)

	if err := s.audit.Log(ctx, "stake_minted", map[string]any{
		"address": addr.Hex(),
		"amount":  amount.String(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", "stake_minted"),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// GetMarket returns the freshest snapshot available: the live aggregate when
// this replica owns it, the stored snapshot otherwise.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	if m, ok := s.registry.Get(id); ok {
		return m.Snapshot(), nil
	}
	snap, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: get market %s: %w", id, err)
	}
	return snap, nil
}

// GetState returns the market's current lifecycle phase, computed fresh.
func (s *MarketService) GetState(ctx context.Context, id string) (domain.ReportingState, error) {
	if m, ok := s.registry.Get(id); ok {
		return m.ReportingState(), nil
	}
	snap, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("service: get market %s: %w", id, err)
	}
	return snap.State, nil
}

// ListMarkets returns snapshots of every live market, oldest first.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	all := s.registry.All()
	snaps := make([]domain.Market, 0, len(all))
	for _, m := range all {
		snaps = append(snaps, m.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].ID < snaps[j].ID
		}
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(snaps) {
			return nil, nil
		}
		snaps = snaps[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(snaps) {
		snaps = snaps[:opts.Limit]
	}
	return snaps, nil
}

// StakeTokens returns the per-distribution stake ledgers of a market.
func (s *MarketService) StakeTokens(ctx context.Context, id string) ([]domain.StakeTokenView, error) {
	m, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("service: market %s: %w", id, domain.ErrNotFound)
	}
	return m.StakeTokens(), nil
}

// Bonds returns the market's current dispute bonds.
func (s *MarketService) Bonds(ctx context.Context, id string) ([]domain.DisputeBond, error) {
	if m, ok := s.registry.Get(id); ok {
		return m.Bonds(), nil
	}
	bonds, err := s.bonds.ListByMarket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: list bonds for %s: %w", id, err)
	}
	return bonds, nil
}

// StakeEvents returns the market's append-only event history.
func (s *MarketService) StakeEvents(ctx context.Context, id string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	events, err := s.events.ListByMarket(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("service: list stake events for %s: %w", id, err)
	}
	return events, nil
}

// lockTree takes the universe-tree lock shared by every market in the tree.
func (s *MarketService) lockTree(ctx context.Context) (func(), error) {
	unlock, err := s.locks.Acquire(ctx, "universe:"+s.registry.Genesis().ID(), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("service: acquire universe lock: %w", err)
	}
	return unlock, nil
}

// lockMarket resolves the live aggregate and takes its tree lock.
func (s *MarketService) lockMarket(ctx context.Context, marketID string) (*reporting.Market, func(), error) {
	m, ok := s.registry.Get(marketID)
	if !ok {
		return nil, nil, fmt.Errorf("service: market %s: %w", marketID, domain.ErrNotFound)
	}
	unlock, err := s.lockTree(ctx)
	if err != nil {
		return nil, nil, err
	}
	return m, unlock, nil
}

// persist writes the post-operation snapshot, mirrors the bond slots, and
// appends the stake event (when one is given). Store failures here are
// surfaced: the aggregate has already moved, so the caller must know the
// read model is behind.
func (s *MarketService) persist(ctx context.Context, m *reporting.Market, ev domain.StakeEvent) (domain.Market, error) {
	snap := m.Snapshot()
	if err := s.markets.Upsert(ctx, snap); err != nil {
		return domain.Market{}, fmt.Errorf("service: persist market %s: %w", m.ID(), err)
	}

	if err := s.syncBonds(ctx, m); err != nil {
		return domain.Market{}, err
	}

	if ev.Kind != "" {
		ev.ID = uuid.New().String()
		ev.MarketID = m.ID()
		ev.CreatedAt = s.clock.Now()
		if err := s.events.Insert(ctx, ev); err != nil {
			return domain.Market{}, fmt.Errorf("service: record %s event for %s: %w", ev.Kind, m.ID(), err)
		}
	}
	return snap, nil
}

// syncBonds mirrors the aggregate's current bond slots into the store. Fork
// migration clears the slots wholesale, and workflow operations can migrate
// implicitly, so the mirror rewrites rather than diffs.
func (s *MarketService) syncBonds(ctx context.Context, m *reporting.Market) error {
	if err := s.bonds.DeleteByMarket(ctx, m.ID()); err != nil {
		return fmt.Errorf("service: sync bonds for %s: %w", m.ID(), err)
	}
	for _, b := range m.Bonds() {
		if err := s.bonds.Create(ctx, b); err != nil {
			return fmt.Errorf("service: sync bonds for %s: %w", m.ID(), err)
		}
	}
	return nil
}

// announce audit-logs the event and fans it out over the signal bus. Both are
// best-effort; the state change has already been committed.
func (s *MarketService) announce(ctx context.Context, event string, fields map[string]any) {
	if err := s.audit.Log(ctx, event, fields); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}

	fields["event"] = event
	payload, err := json.Marshal(fields)
	if err != nil {
		s.logger.WarnContext(ctx, "event marshal failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, lifecycleChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, lifecycleStream, payload); err != nil {
		s.logger.WarnContext(ctx, "event stream append failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// verifyReportSignature checks that signature recovers to reporter over this
// market's id and the reported distribution.
func (s *MarketService) verifyReportSignature(m *reporting.Market, reporter common.Address, numerators []int64, signature string) error {
	if signature == "" {
		return fmt.Errorf("service: signed reports required: %w", domain.ErrUnauthorized)
	}
	payout, err := domain.NewPayoutDistribution(numerators, m.NumOutcomes(), m.NumTicks())
	if err != nil {
		return err
	}
	recovered, err := crypto.RecoverReporter(m.ID(), payout, signature)
	if err != nil {
		return fmt.Errorf("service: verify report signature: %w", err)
	}
	if recovered != reporter {
		return fmt.Errorf("service: signature recovers %s, not reporter %s: %w",
			recovered.Hex(), reporter.Hex(), domain.ErrUnauthorized)
	}
	return nil
}
