package reporting

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// TryFinalize commits the winning distribution and settles bond outcomes.
// For the forking market the winner comes from the fork-outcome rule rather
// than the stored tentative winner, and bond settlement is skipped (fork
// settlement happens at the universe level, not per market). The state check
// makes finalization idempotent: once the final winner is set the market is
// FINALIZED and a second attempt fails with ErrWrongPhase.
func (m *Market) TryFinalize() error {
	if err := m.MigrateThroughAllForks(); err != nil {
		return err
	}
	if err := m.requireState(domain.StateAwaitingFinalization); err != nil {
		return err
	}

	isFork := m.isForkingMarket()
	winner := m.tentativeWinner
	if isFork {
		winner = m.winningPayoutHashFromFork()
	}
	if winner == (common.Hash{}) {
		return fmt.Errorf("reporting: finalize market %s: %w", m.id, domain.ErrNoWinner)
	}

	m.finalWinner = winner
	m.finalizedAt = m.clock.Now()
	m.window.UpdateMarketPhase(m.id, domain.StateFinalized)

	if isFork {
		return nil
	}
	return m.settleBonds()
}

// FinalPayout returns the committed winning distribution once finalized.
func (m *Market) FinalPayout() (domain.PayoutDistribution, bool) {
	if m.finalWinner == (common.Hash{}) {
		return domain.PayoutDistribution{}, false
	}
	return m.PayoutForHash(m.finalWinner)
}

// settleBonds consumes the bond slots. A bond whose disputed hash does not
// match the final winner pays its held stake to the holders of the winning
// stake token, pro rata by balance: an incorrect dispute forfeits its stake
// to the correct side. A bond whose disputed hash matches the final winner
// returns to its poster.
func (m *Market) settleBonds() error {
	rep := m.reputationToken()
	winners := m.stakeTokens[m.finalWinner]

	for _, bond := range []*domain.DisputeBond{m.designatedBond, m.limitedBond, m.allBond} {
		if bond == nil {
			continue
		}
		if bond.DisputedHash != m.finalWinner {
			if winners == nil || winners.supply.Sign() == 0 {
				continue
			}
			if err := m.payProRata(rep, bond.Amount, winners); err != nil {
				return fmt.Errorf("reporting: settle %s bond: %w", bond.Round, err)
			}
			continue
		}
		if err := rep.TrustedTransfer(m.escrow, bond.Poster, bond.Amount); err != nil {
			return fmt.Errorf("reporting: refund %s bond: %w", bond.Round, err)
		}
	}
	return nil
}

// payProRata distributes amount from escrow across the token's holders in
// first-stake order; the last holder absorbs the integer-division remainder
// so the full amount leaves escrow.
func (m *Market) payProRata(rep domain.ReputationToken, amount *big.Int, tok *stakeToken) error {
	remaining := new(big.Int).Set(amount)
	for i, holder := range tok.holders {
		share := new(big.Int)
		if i == len(tok.holders)-1 {
			share.Set(remaining)
		} else {
			share.Mul(amount, tok.balances[holder])
			share.Div(share, tok.supply)
			if share.Cmp(remaining) > 0 {
				share.Set(remaining)
			}
		}
		if share.Sign() == 0 {
			continue
		}
		if err := rep.TrustedTransfer(m.escrow, holder, share); err != nil {
			return err
		}
		remaining.Sub(remaining, share)
	}
	return nil
}
