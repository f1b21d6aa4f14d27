package reporting

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// SubmitDesignatedReport records the designated reporter's first report. The
// reporter's stake is transferred to escrow and staked on the reported
// distribution, which becomes the tentative winner.
func (m *Market) SubmitDesignatedReport(reporter common.Address, numerators []int64) error {
	if err := m.MigrateThroughAllForks(); err != nil {
		return err
	}
	if err := m.requireState(domain.StateDesignatedReporting); err != nil {
		return err
	}
	if reporter != m.designatedReporter {
		return fmt.Errorf("reporting: %s is not the designated reporter: %w", reporter, domain.ErrUnauthorized)
	}
	payout, err := domain.NewPayoutDistribution(numerators, m.numOutcomes, m.numTicks)
	if err != nil {
		return err
	}

	stake := m.params.DesignatedReporterStake
	if err := m.reputationToken().TrustedTransfer(reporter, m.escrow, stake); err != nil {
		return fmt.Errorf("reporting: fund designated report: %w", err)
	}

	tok := m.getOrCreateStakeToken(payout)
	tok.credit(reporter, stake)
	m.designatedReportReceivedAt = m.clock.Now()
	m.updateTentativeWinner(tok.hash)
	m.window.UpdateMarketPhase(m.id, m.ReportingState())
	return nil
}

// StakeOnOutcome stakes value behind a distribution during an open reporting
// phase. Open to any caller.
func (m *Market) StakeOnOutcome(staker common.Address, numerators []int64, amount *big.Int) error {
	if err := m.MigrateThroughAllForks(); err != nil {
		return err
	}
	st := m.ReportingState()
	if st != domain.StateLimitedReporting && st != domain.StateAllReporting {
		return fmt.Errorf("reporting: staking requires an open reporting phase, market is %s: %w",
			st, domain.ErrWrongPhase)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("reporting: stake amount must be positive: %w", domain.ErrInvalidConfiguration)
	}
	payout, err := domain.NewPayoutDistribution(numerators, m.numOutcomes, m.numTicks)
	if err != nil {
		return err
	}

	if err := m.reputationToken().TrustedTransfer(staker, m.escrow, amount); err != nil {
		return fmt.Errorf("reporting: fund stake: %w", err)
	}

	tok := m.getOrCreateStakeToken(payout)
	tok.credit(staker, amount)
	m.updateTentativeWinner(tok.hash)
	m.window.UpdateMarketPhase(m.id, m.ReportingState())
	return nil
}

// DisputeDesignatedReport challenges the designated report. The market stays
// in its current window; escalation to limited reporting happens within the
// same epoch.
func (m *Market) DisputeDesignatedReport(disputer common.Address) (*domain.DisputeBond, error) {
	if err := m.MigrateThroughAllForks(); err != nil {
		return nil, err
	}
	if err := m.requireState(domain.StateDesignatedDispute); err != nil {
		return nil, err
	}
	if m.designatedBond != nil {
		return nil, fmt.Errorf("reporting: designated round: %w", domain.ErrAlreadyDisputed)
	}

	bond, err := m.postBond(disputer, domain.RoundDesignated, m.params.DesignatedDisputeBond)
	if err != nil {
		return nil, err
	}
	m.designatedBond = bond
	m.updateTentativeWinner(bond.DisputedHash)
	m.window.UpdateMarketPhase(m.id, m.ReportingState())
	return bond, nil
}

// DisputeLimitedReporters challenges the limited-round tentative winner and
// escalates the market into the universe's next reporting window.
func (m *Market) DisputeLimitedReporters(disputer common.Address) (*domain.DisputeBond, error) {
	if err := m.MigrateThroughAllForks(); err != nil {
		return nil, err
	}
	if err := m.requireState(domain.StateLimitedDispute); err != nil {
		return nil, err
	}
	if m.limitedBond != nil {
		return nil, fmt.Errorf("reporting: limited round: %w", domain.ErrAlreadyDisputed)
	}

	bond, err := m.postBond(disputer, domain.RoundLimited, m.params.LimitedDisputeBond)
	if err != nil {
		return nil, err
	}
	m.limitedBond = bond
	m.updateTentativeWinner(bond.DisputedHash)

	u := m.window.Universe()
	m.moveToWindow(u.NextReportingWindow(m.clock.Now()), true)
	return bond, nil
}

// DisputeAllReporters challenges the all-reporters tentative winner. All
// reporters disagreeing is the event that splits the universe: the universe
// forks and the market moves to the fork-end reporting window.
func (m *Market) DisputeAllReporters(disputer common.Address) (*domain.DisputeBond, error) {
	if err := m.MigrateThroughAllForks(); err != nil {
		return nil, err
	}
	if err := m.requireState(domain.StateAllDispute); err != nil {
		return nil, err
	}
	if m.allBond != nil {
		return nil, fmt.Errorf("reporting: all round: %w", domain.ErrAlreadyDisputed)
	}

	bond, err := m.postBond(disputer, domain.RoundAll, m.params.AllDisputeBond)
	if err != nil {
		return nil, err
	}
	m.allBond = bond
	m.updateTentativeWinner(bond.DisputedHash)

	u := m.window.Universe()
	if err := u.Fork(m); err != nil {
		return nil, fmt.Errorf("reporting: fork universe: %w", err)
	}
	m.moveToWindow(u.ReportingWindowForForkEndTime(), true)
	return bond, nil
}

// MigrateDueToNoReports moves a market whose window closed without any
// tentative winner into the next reporting window. Dispute state is kept;
// only fork migration resets it.
func (m *Market) MigrateDueToNoReports() error {
	if err := m.MigrateThroughAllForks(); err != nil {
		return err
	}
	if err := m.requireState(domain.StateAwaitingNoReportMigration); err != nil {
		return err
	}
	u := m.window.Universe()
	m.moveToWindow(u.NextReportingWindow(m.clock.Now()), true)
	return nil
}

// postBond funds and builds a dispute bond against the current tentative
// winner. Validation happens before the transfer so a failure leaves the
// market untouched.
func (m *Market) postBond(poster common.Address, round domain.DisputeRound, amount *big.Int) (*domain.DisputeBond, error) {
	if err := m.reputationToken().TrustedTransfer(poster, m.escrow, amount); err != nil {
		return nil, fmt.Errorf("reporting: fund %s dispute bond: %w", round, err)
	}
	return &domain.DisputeBond{
		ID:           uuid.New().String(),
		MarketID:     m.id,
		Round:        round,
		Poster:       poster,
		Amount:       new(big.Int).Set(amount),
		DisputedHash: m.tentativeWinner,
		PostedAt:     m.clock.Now(),
	}, nil
}

// moveToWindow detaches the market from its window and attaches it to w.
// Sibling moves stay within one universe; nibling moves cross a fork.
func (m *Market) moveToWindow(w domain.ReportingWindow, sibling bool) {
	m.window.RemoveMarket(m.id)
	m.window = w
	if sibling {
		w.MigrateMarketInFromSibling(m)
	} else {
		w.MigrateMarketInFromNibling(m)
	}
	w.UpdateMarketPhase(m.id, m.ReportingState())
}
