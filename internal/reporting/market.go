// Package reporting implements the outcome-reporting and dispute-resolution
// lifecycle of a single prediction market: designated report, three
// escalating dispute rounds with staked bonds, reporting-window phase
// tracking, fork migration across universes, and finalization with bond
// settlement.
//
// A Market aggregate is not safe for concurrent use; the service layer
// serializes every mutating operation per universe.
package reporting

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// Config carries everything needed to initialize a Market. Immutable fields
// are fixed here; only the creator fee can move (downward) afterwards.
type Config struct {
	ID                 string // generated when empty
	NumOutcomes        int
	NumTicks           int64
	EndTime            time.Time
	Owner              common.Address
	DesignatedReporter common.Address // zero means no designated reporter
	CreatorFeeBps      int64
	Window             domain.ReportingWindow
	Clock              domain.Clock
	Params             Params
}

// stakeToken is the per-distribution-hash stake ledger. Created lazily on
// first stake, never removed.
type stakeToken struct {
	id       string
	payout   domain.PayoutDistribution
	hash     common.Hash
	supply   *big.Int
	balances map[common.Address]*big.Int
	holders  []common.Address // first-stake order, fixes settlement ordering
}

func (t *stakeToken) credit(addr common.Address, amount *big.Int) {
	if _, ok := t.balances[addr]; !ok {
		t.balances[addr] = new(big.Int)
		t.holders = append(t.holders, addr)
	}
	t.balances[addr].Add(t.balances[addr], amount)
	t.supply.Add(t.supply, amount)
}

// Market is the live aggregate. All mutation flows through the workflow
// operations; reads are plain accessors.
type Market struct {
	id          string
	numOutcomes int
	numTicks    int64
	endTime     time.Time

	owner              common.Address
	designatedReporter common.Address
	creatorFeeBps      int64

	window domain.ReportingWindow
	clock  domain.Clock
	params Params

	stakeTokens map[common.Hash]*stakeToken
	stakeOrder  []common.Hash
	shareTokens []domain.ShareToken

	designatedBond *domain.DisputeBond
	limitedBond    *domain.DisputeBond
	allBond        *domain.DisputeBond

	tentativeWinner common.Hash
	secondPlace     common.Hash
	finalWinner     common.Hash

	designatedReportReceivedAt time.Time
	finalizedAt                time.Time
	createdAt                  time.Time

	// escrow holds bond and stake transfers until settlement.
	escrow common.Address
}

// NewMarket validates the configuration, creates the per-outcome share
// tokens, and attaches the market to its reporting window.
func NewMarket(cfg Config) (*Market, error) {
	if cfg.NumOutcomes < domain.MinOutcomes || cfg.NumOutcomes > domain.MaxOutcomes {
		return nil, fmt.Errorf("reporting: %d outcomes outside [%d,%d]: %w",
			cfg.NumOutcomes, domain.MinOutcomes, domain.MaxOutcomes, domain.ErrInvalidConfiguration)
	}
	if cfg.NumTicks <= 0 || cfg.NumTicks%int64(cfg.NumOutcomes) != 0 {
		return nil, fmt.Errorf("reporting: numTicks %d not divisible by %d outcomes: %w",
			cfg.NumTicks, cfg.NumOutcomes, domain.ErrInvalidConfiguration)
	}
	if cfg.CreatorFeeBps < 0 || cfg.CreatorFeeBps > MaxCreatorFeeBps {
		return nil, fmt.Errorf("reporting: creator fee %d bps exceeds ceiling %d: %w",
			cfg.CreatorFeeBps, MaxCreatorFeeBps, domain.ErrInvalidConfiguration)
	}
	if cfg.EndTime.IsZero() {
		return nil, fmt.Errorf("reporting: end time not set: %w", domain.ErrInvalidConfiguration)
	}
	if cfg.Window == nil || cfg.Clock == nil {
		return nil, fmt.Errorf("reporting: window and clock are required: %w", domain.ErrInvalidConfiguration)
	}

	id := cfg.ID
	if id == "" {
		id = uuid.New().String()
	}

	m := &Market{
		id:                 id,
		numOutcomes:        cfg.NumOutcomes,
		numTicks:           cfg.NumTicks,
		endTime:            cfg.EndTime,
		owner:              cfg.Owner,
		designatedReporter: cfg.DesignatedReporter,
		creatorFeeBps:      cfg.CreatorFeeBps,
		window:             cfg.Window,
		clock:              cfg.Clock,
		params:             cfg.Params,
		stakeTokens:        make(map[common.Hash]*stakeToken),
		createdAt:          cfg.Clock.Now(),
		escrow:             escrowAddress(id),
	}

	m.shareTokens = make([]domain.ShareToken, cfg.NumOutcomes)
	for i := range m.shareTokens {
		m.shareTokens[i] = domain.ShareToken{
			ID:       fmt.Sprintf("%s/share/%d", id, i),
			MarketID: id,
			Outcome:  i,
		}
	}

	cfg.Window.AddMarket(m)
	return m, nil
}

// escrowAddress derives the address that holds staked value for a market.
func escrowAddress(marketID string) common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("resolvd/escrow/" + marketID))[12:])
}

// ID implements domain.ForkSubject.
func (m *Market) ID() string { return m.id }

// IsFinalized implements domain.ForkSubject.
func (m *Market) IsFinalized() bool { return m.finalWinner != (common.Hash{}) }

// FinalPayoutHash implements domain.ForkSubject.
func (m *Market) FinalPayoutHash() common.Hash { return m.finalWinner }

func (m *Market) NumOutcomes() int                    { return m.numOutcomes }
func (m *Market) NumTicks() int64                     { return m.numTicks }
func (m *Market) EndTime() time.Time                  { return m.endTime }
func (m *Market) Owner() common.Address               { return m.owner }
func (m *Market) DesignatedReporter() common.Address  { return m.designatedReporter }
func (m *Market) CreatorFeeBps() int64                { return m.creatorFeeBps }
func (m *Market) Window() domain.ReportingWindow      { return m.window }
func (m *Market) TentativeWinner() common.Hash        { return m.tentativeWinner }
func (m *Market) SecondPlace() common.Hash            { return m.secondPlace }
func (m *Market) FinalizedAt() time.Time              { return m.finalizedAt }
func (m *Market) DesignatedReportReceivedAt() time.Time { return m.designatedReportReceivedAt }
func (m *Market) EscrowAddress() common.Address       { return m.escrow }

// Bond returns the bond in the given round's slot, or nil.
func (m *Market) Bond(round domain.DisputeRound) *domain.DisputeBond {
	switch round {
	case domain.RoundDesignated:
		return m.designatedBond
	case domain.RoundLimited:
		return m.limitedBond
	case domain.RoundAll:
		return m.allBond
	}
	return nil
}

// Bonds returns the occupied bond slots in round order.
func (m *Market) Bonds() []domain.DisputeBond {
	var out []domain.DisputeBond
	for _, b := range []*domain.DisputeBond{m.designatedBond, m.limitedBond, m.allBond} {
		if b != nil {
			out = append(out, *b)
		}
	}
	return out
}

// ShareTokens returns the fixed per-outcome share token handles.
func (m *Market) ShareTokens() []domain.ShareToken {
	return append([]domain.ShareToken(nil), m.shareTokens...)
}

// StakeTokens returns read-only views of every stake token, in creation order.
func (m *Market) StakeTokens() []domain.StakeTokenView {
	out := make([]domain.StakeTokenView, 0, len(m.stakeOrder))
	for _, h := range m.stakeOrder {
		tok := m.stakeTokens[h]
		out = append(out, domain.StakeTokenView{
			Hash:        h,
			Payout:      tok.payout,
			TotalSupply: new(big.Int).Set(tok.supply),
		})
	}
	return out
}

// StakeFor returns the total stake backing a distribution hash (zero when the
// hash has no stake token yet).
func (m *Market) StakeFor(h common.Hash) *big.Int {
	if tok, ok := m.stakeTokens[h]; ok {
		return new(big.Int).Set(tok.supply)
	}
	return new(big.Int)
}

// PayoutForHash returns the distribution behind a tracked hash.
func (m *Market) PayoutForHash(h common.Hash) (domain.PayoutDistribution, bool) {
	tok, ok := m.stakeTokens[h]
	if !ok {
		return domain.PayoutDistribution{}, false
	}
	return tok.payout, true
}

// IsContainerForStakeToken reports whether the hash belongs to this market's
// stake-token registry.
func (m *Market) IsContainerForStakeToken(h common.Hash) bool {
	_, ok := m.stakeTokens[h]
	return ok
}

// IsContainerForDisputeBond reports whether the bond id belongs to one of
// this market's bond slots.
func (m *Market) IsContainerForDisputeBond(id string) bool {
	for _, b := range []*domain.DisputeBond{m.designatedBond, m.limitedBond, m.allBond} {
		if b != nil && b.ID == id {
			return true
		}
	}
	return false
}

// IsContainerForShareToken reports whether the share token id belongs to
// this market.
func (m *Market) IsContainerForShareToken(id string) bool {
	for _, st := range m.shareTokens {
		if st.ID == id {
			return true
		}
	}
	return false
}

// SetCreatorFee lowers the creator settlement fee. Only the owner may call
// it and the fee can never increase.
func (m *Market) SetCreatorFee(caller common.Address, feeBps int64) error {
	if caller != m.owner {
		return fmt.Errorf("reporting: caller %s is not the market owner: %w", caller, domain.ErrUnauthorized)
	}
	if feeBps < 0 || feeBps > m.creatorFeeBps {
		return fmt.Errorf("reporting: fee %d bps must stay within [0,%d]: %w",
			feeBps, m.creatorFeeBps, domain.ErrInvalidConfiguration)
	}
	m.creatorFeeBps = feeBps
	return nil
}

func (m *Market) getOrCreateStakeToken(payout domain.PayoutDistribution) *stakeToken {
	h := payout.Hash()
	if tok, ok := m.stakeTokens[h]; ok {
		return tok
	}
	tok := &stakeToken{
		id:       fmt.Sprintf("%s/stake/%s", m.id, h.Hex()),
		payout:   payout,
		hash:     h,
		supply:   new(big.Int),
		balances: make(map[common.Address]*big.Int),
	}
	m.stakeTokens[h] = tok
	m.stakeOrder = append(m.stakeOrder, h)
	return tok
}

func (m *Market) hasDesignatedReporter() bool {
	return m.designatedReporter != (common.Address{})
}

func (m *Market) isForkingMarket() bool {
	fm := m.window.Universe().ForkingMarket()
	return fm != nil && fm.ID() == m.id
}

func (m *Market) reputationToken() domain.ReputationToken {
	return m.window.Universe().ReputationToken()
}

// Snapshot renders the aggregate as the persisted/API view.
func (m *Market) Snapshot() domain.Market {
	snap := domain.Market{
		ID:                 m.id,
		UniverseID:         m.window.Universe().ID(),
		WindowStart:        m.window.StartTime(),
		NumOutcomes:        m.numOutcomes,
		NumTicks:           m.numTicks,
		EndTime:            m.endTime,
		Owner:              m.owner,
		DesignatedReporter: m.designatedReporter,
		CreatorFeeBps:      m.creatorFeeBps,
		State:              m.ReportingState(),
		TentativeWinner:    m.tentativeWinner,
		SecondPlace:        m.secondPlace,
		FinalWinner:        m.finalWinner,
		CreatedAt:          m.createdAt,
		UpdatedAt:          m.clock.Now(),
	}
	if !m.designatedReportReceivedAt.IsZero() {
		t := m.designatedReportReceivedAt
		snap.DesignatedReportAt = &t
	}
	if !m.finalizedAt.IsZero() {
		t := m.finalizedAt
		snap.FinalizedAt = &t
	}
	return snap
}
