package reporting

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// effectiveStake is a distribution's ranking weight: the stake-token supply
// backing the hash minus the amount of any bond currently disputing that
// exact hash. The stake itself is untouched; only the ranking weight drops.
// The empty hash weighs zero.
func (m *Market) effectiveStake(h common.Hash) *big.Int {
	stake := new(big.Int)
	if h == (common.Hash{}) {
		return stake
	}
	if tok, ok := m.stakeTokens[h]; ok {
		stake.Set(tok.supply)
	}
	for _, b := range []*domain.DisputeBond{m.designatedBond, m.limitedBond, m.allBond} {
		if b != nil && b.DisputedHash == h {
			stake.Sub(stake, b.Amount)
		}
	}
	return stake
}

// rankTopTwo selects the top two candidates by stake. Candidates are given
// in priority order and an earlier candidate keeps its place on a tie, so
// redundantly re-ranking the current winner is a no-op. Candidates with
// non-positive stake are treated as unset rather than kept as placeholders,
// which keeps a bonded-down stake from masquerading as a leader.
func rankTopTwo(candidates []common.Hash, stakeOf func(common.Hash) *big.Int) (winner, second common.Hash) {
	type entry struct {
		hash  common.Hash
		stake *big.Int
	}
	entries := make([]entry, 0, len(candidates))
	seen := make(map[common.Hash]bool, len(candidates))
	for _, h := range candidates {
		if h == (common.Hash{}) || seen[h] {
			continue
		}
		seen[h] = true
		if s := stakeOf(h); s.Sign() > 0 {
			entries = append(entries, entry{hash: h, stake: s})
		}
	}

	best := -1
	for i := range entries {
		if best < 0 || entries[i].stake.Cmp(entries[best].stake) > 0 {
			best = i
		}
	}
	if best < 0 {
		return common.Hash{}, common.Hash{}
	}
	winner = entries[best].hash

	runnerUp := -1
	for i := range entries {
		if i == best {
			continue
		}
		if runnerUp < 0 || entries[i].stake.Cmp(entries[runnerUp].stake) > 0 {
			runnerUp = i
		}
	}
	if runnerUp >= 0 {
		second = entries[runnerUp].hash
	}
	return winner, second
}

// updateTentativeWinner folds a newly-relevant distribution hash into the
// top-two ranking. It must run after every stake- or bond-affecting event so
// the tentative winner and second place are never stale.
func (m *Market) updateTentativeWinner(candidate common.Hash) {
	m.tentativeWinner, m.secondPlace = rankTopTwo(
		[]common.Hash{m.tentativeWinner, m.secondPlace, candidate},
		m.effectiveStake,
	)
}
