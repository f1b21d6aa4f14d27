package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DisputeRound identifies one of the three escalating dispute rounds.
type DisputeRound string

const (
	RoundDesignated DisputeRound = "designated"
	RoundLimited    DisputeRound = "limited"
	RoundAll        DisputeRound = "all"
)

// Valid reports whether the round is one of the three known rounds.
func (r DisputeRound) Valid() bool {
	switch r {
	case RoundDesignated, RoundLimited, RoundAll:
		return true
	}
	return false
}

// DisputeBond is a one-shot staked challenge against the tentative winner at
// the moment it was posted. A slot exists at most once per round per market
// lifecycle; the bond is consumed only at finalization, or cleared wholesale
// by fork migration.
type DisputeBond struct {
	ID           string
	MarketID     string
	Round        DisputeRound
	Poster       common.Address
	Amount       *big.Int
	DisputedHash common.Hash
	PostedAt     time.Time
}
