package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// MinOutcomes and MaxOutcomes bound the number of outcomes a market may have.
	MinOutcomes = 2
	MaxOutcomes = 8
)

// PayoutDistribution is a candidate outcome for a market: one non-negative
// numerator per outcome, summing exactly to the market's tick count. Two
// distributions are equal iff their hashes match.
type PayoutDistribution struct {
	Numerators []int64
	NumTicks   int64
}

// NewPayoutDistribution validates numerators against the market shape and
// returns the distribution. It returns ErrInvalidConfiguration for a wrong
// vector length, a numerator outside [0, numTicks], or a sum != numTicks.
func NewPayoutDistribution(numerators []int64, numOutcomes int, numTicks int64) (PayoutDistribution, error) {
	if len(numerators) != numOutcomes {
		return PayoutDistribution{}, fmt.Errorf("domain: payout has %d numerators, market has %d outcomes: %w",
			len(numerators), numOutcomes, ErrInvalidConfiguration)
	}
	var sum int64
	for i, n := range numerators {
		if n < 0 || n > numTicks {
			return PayoutDistribution{}, fmt.Errorf("domain: payout numerator[%d]=%d outside [0,%d]: %w",
				i, n, numTicks, ErrInvalidConfiguration)
		}
		sum += n
	}
	if sum != numTicks {
		return PayoutDistribution{}, fmt.Errorf("domain: payout numerators sum to %d, want %d: %w",
			sum, numTicks, ErrInvalidConfiguration)
	}
	out := PayoutDistribution{
		Numerators: append([]int64(nil), numerators...),
		NumTicks:   numTicks,
	}
	return out, nil
}

// Hash derives the deterministic content identity of the distribution:
// keccak256 over the 32-byte big-endian encodings of numTicks followed by
// each numerator, in order.
func (p PayoutDistribution) Hash() common.Hash {
	buf := make([]byte, 0, (len(p.Numerators)+1)*32)
	buf = append(buf, common.LeftPadBytes(big.NewInt(p.NumTicks).Bytes(), 32)...)
	for _, n := range p.Numerators {
		buf = append(buf, common.LeftPadBytes(big.NewInt(n).Bytes(), 32)...)
	}
	return common.BytesToHash(ethcrypto.Keccak256(buf))
}

// IsZero reports whether the distribution is the empty value.
func (p PayoutDistribution) IsZero() bool {
	return len(p.Numerators) == 0
}
