package reporting

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// MigrateThroughOneFork relocates the market across one resolved fork. It is
// a no-op (false, nil) unless the market is awaiting fork migration, and it
// fails with ErrUnresolvedFork while the forking market has not finalized:
// forks must resolve before followers migrate.
//
// Migration restarts the reporting lifecycle from scratch in the child
// universe: the end time is recomputed to now, the market attaches to the
// destination window, and all transient dispute state is reset.
func (m *Market) MigrateThroughOneFork() (bool, error) {
	if m.ReportingState() != domain.StateAwaitingForkMigration {
		return false, nil
	}
	u := m.window.Universe()
	forking := u.ForkingMarket()
	if forking == nil || !forking.IsFinalized() {
		return false, fmt.Errorf("reporting: migrate market %s: %w", m.id, domain.ErrUnresolvedFork)
	}

	dest := u.GetOrCreateChildUniverse(forking.FinalPayoutHash())
	m.endTime = m.clock.Now()
	w := dest.ReportingWindowByMarketEndTime(m.endTime, m.hasDesignatedReporter())
	m.moveToWindow(w, false)

	m.designatedReportReceivedAt = time.Time{}
	m.designatedBond = nil
	m.limitedBond = nil
	m.allBond = nil
	m.tentativeWinner = common.Hash{}
	m.secondPlace = common.Hash{}
	return true, nil
}

// MigrateThroughAllForks follows a cascade of universe splits until the
// market lands in a stable reporting window. The loop is bounded; exceeding
// the bound means the universe graph is cyclic or malicious and is treated
// as fatal rather than spinning.
func (m *Market) MigrateThroughAllForks() error {
	for i := 0; i < maxForkDepth; i++ {
		moved, err := m.MigrateThroughOneFork()
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
	}
	return fmt.Errorf("reporting: market %s migrated %d times without settling: %w",
		m.id, maxForkDepth, domain.ErrForkDepthExceeded)
}

// winningPayoutHashFromFork resolves the winner for the universe's forking
// market. A fork resolves once a stake majority has committed to one child
// universe, or once the fork window runs out; before the deadline the
// majority check is required, from the deadline onward it is bypassed.
func (m *Market) winningPayoutHashFromFork() common.Hash {
	u := m.window.Universe()
	forking := u.ForkingMarket()
	if forking == nil || forking.ID() != m.id {
		return common.Hash{}
	}
	rep := u.ReputationToken()
	dest := rep.TopMigrationDestination()
	if dest == nil {
		return common.Hash{}
	}
	// The deadline comparison is strictly less-than: supply is only
	// re-evaluated while the fork window is still open.
	if m.clock.Now().Before(u.ForkEndTime()) {
		migrated := new(big.Int).Mul(dest.TotalSupply(), big.NewInt(2))
		if migrated.Cmp(rep.TotalSupply()) < 0 {
			return common.Hash{}
		}
	}
	return dest.Universe().ParentPayoutDistributionHash()
}
