package reporting

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// CalculateProceeds returns the settlement value of holding shares of one
// outcome once the market has finalized: shares times the winning payout
// numerator for that outcome. Shares of an outcome the winner assigns zero
// to are worth nothing.
func (m *Market) CalculateProceeds(outcome int, shares *big.Int) (*big.Int, error) {
	if outcome < 0 || outcome >= m.numOutcomes {
		return nil, fmt.Errorf("reporting: outcome %d outside [0,%d): %w",
			outcome, m.numOutcomes, domain.ErrInvalidConfiguration)
	}
	payout, ok := m.FinalPayout()
	if !ok {
		return nil, wrongPhase(domain.StateFinalized, m.ReportingState())
	}
	return new(big.Int).Mul(shares, big.NewInt(payout.Numerators[outcome])), nil
}

// DivideUpWinnings splits settlement proceeds into the shareholder's cut,
// the market creator's fee, and the reporting fee.
func (m *Market) DivideUpWinnings(outcome int, shares *big.Int) (shareholder, creator, reporter *big.Int, err error) {
	proceeds, err := m.CalculateProceeds(outcome, shares)
	if err != nil {
		return nil, nil, nil, err
	}
	creator = feeOf(proceeds, m.creatorFeeBps)
	reporter = feeOf(proceeds, m.params.ReportingFeeBps)
	shareholder = new(big.Int).Sub(proceeds, creator)
	shareholder.Sub(shareholder, reporter)
	return shareholder, creator, reporter, nil
}

func feeOf(amount *big.Int, bps int64) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(bps))
	return fee.Div(fee, big.NewInt(10_000))
}
