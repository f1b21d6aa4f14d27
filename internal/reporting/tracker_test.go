package reporting

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func hashOf(b byte) common.Hash {
	return common.Hash{31: b}
}

func stakesOf(m map[common.Hash]int64) func(common.Hash) *big.Int {
	return func(h common.Hash) *big.Int {
		return big.NewInt(m[h])
	}
}

func TestRankTopTwo(t *testing.T) {
	h1, h2, h3 := hashOf(1), hashOf(2), hashOf(3)

	tests := []struct {
		name       string
		candidates []common.Hash
		stakes     map[common.Hash]int64
		winner     common.Hash
		second     common.Hash
	}{
		{
			name:       "empty",
			candidates: nil,
		},
		{
			name:       "single",
			candidates: []common.Hash{h1},
			stakes:     map[common.Hash]int64{h1: 10},
			winner:     h1,
		},
		{
			name:       "ordered by stake",
			candidates: []common.Hash{h1, h2, h3},
			stakes:     map[common.Hash]int64{h1: 5, h2: 30, h3: 10},
			winner:     h2,
			second:     h3,
		},
		{
			name:       "tie keeps earlier candidate",
			candidates: []common.Hash{h1, h2},
			stakes:     map[common.Hash]int64{h1: 10, h2: 10},
			winner:     h1,
			second:     h2,
		},
		{
			name:       "zero hash ignored",
			candidates: []common.Hash{{}, h1},
			stakes:     map[common.Hash]int64{h1: 10},
			winner:     h1,
		},
		{
			name:       "duplicates collapse",
			candidates: []common.Hash{h1, h1, h2},
			stakes:     map[common.Hash]int64{h1: 10, h2: 5},
			winner:     h1,
			second:     h2,
		},
		{
			name:       "non-positive stake drops out",
			candidates: []common.Hash{h1, h2, h3},
			stakes:     map[common.Hash]int64{h1: -5, h2: 0, h3: 10},
			winner:     h3,
		},
		{
			name:       "all non-positive yields no winner",
			candidates: []common.Hash{h1, h2},
			stakes:     map[common.Hash]int64{h1: 0, h2: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, second := rankTopTwo(tt.candidates, stakesOf(tt.stakes))
			if winner != tt.winner {
				t.Fatalf("winner = %s, want %s", winner, tt.winner)
			}
			if second != tt.second {
				t.Fatalf("second = %s, want %s", second, tt.second)
			}
		})
	}
}

// TestIncrementalRankMatchesFullRerank drives the incremental fold the market
// uses (re-rank winner, second, and the touched hash) against a brute-force
// re-rank of every hash after each of a few hundred random stake additions.
// With additions only and distinct running totals the two must agree.
func TestIncrementalRankMatchesFullRerank(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	hashes := make([]common.Hash, 6)
	for i := range hashes {
		hashes[i] = hashOf(byte(i + 1))
	}

	stakes := make(map[common.Hash]int64)
	stakeOf := func(h common.Hash) *big.Int { return big.NewInt(stakes[h]) }

	var winner, second common.Hash
	for step := 0; step < 300; step++ {
		h := hashes[rng.Intn(len(hashes))]
		stakes[h] += int64(rng.Intn(50)) + 1

		winner, second = rankTopTwo([]common.Hash{winner, second, h}, stakeOf)

		// On a genuine tie the two sides may break it differently (each keeps
		// the earlier candidate of its own ordering), so only distinct stakes
		// are compared.
		wantWinner, wantSecond := rankTopTwo(hashes, stakeOf)
		if wantWinner != winner && stakes[wantWinner] != stakes[winner] {
			t.Fatalf("step %d: incremental winner %s (stake %d), full re-rank %s (stake %d)",
				step, winner, stakes[winner], wantWinner, stakes[wantWinner])
		}
		if wantSecond != second && stakes[wantSecond] != stakes[second] {
			t.Fatalf("step %d: incremental second %s (stake %d), full re-rank %s (stake %d)",
				step, second, stakes[second], wantSecond, stakes[wantSecond])
		}
	}
}

func TestEffectiveStakeSubtractsDisputingBond(t *testing.T) {
	f := newFixture(t, true)
	f.reportDesignated(300, 0, 0)

	h := f.payoutHash(300, 0, 0)
	if got := f.market.effectiveStake(h); got.Int64() != 100 {
		t.Fatalf("undisputed effective stake = %s, want 100", got)
	}

	if _, err := f.market.DisputeDesignatedReport(f.disputer); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	// Bond of 40 disputes the hash: ranking weight drops, raw stake does not.
	if got := f.market.effectiveStake(h); got.Int64() != 60 {
		t.Fatalf("disputed effective stake = %s, want 60", got)
	}
	if got := f.market.StakeFor(h); got.Int64() != 100 {
		t.Fatalf("raw stake = %s, want 100", got)
	}
}
