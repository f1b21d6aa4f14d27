package reporting

import (
	"math/big"
	"time"
)

// MaxCreatorFeeBps is the ceiling for the market creator's settlement fee.
const MaxCreatorFeeBps = 5000

// maxForkDepth bounds MigrateThroughAllForks. A well-formed universe chain
// never approaches this; hitting it means the graph is cyclic or malicious.
const maxForkDepth = 64

// Params holds the timing and bond-sizing constants for the reporting
// lifecycle. Amounts are attostake (1e-18 units of the staking currency).
type Params struct {
	// DesignatedReportingDuration is how long after market end the
	// designated reporter has to submit the first report.
	DesignatedReportingDuration time.Duration

	// DesignatedDisputeDuration is the challenge window that opens once a
	// designated report lands.
	DesignatedDisputeDuration time.Duration

	// DesignatedReporterStake is staked on the reported distribution when
	// the designated report is submitted.
	DesignatedReporterStake *big.Int

	// Bond amounts per dispute round. Each round escalates 10x.
	DesignatedDisputeBond *big.Int
	LimitedDisputeBond    *big.Int
	AllDisputeBond        *big.Int

	// ReportingFeeBps is the reporting fee taken from settlement proceeds,
	// in basis points.
	ReportingFeeBps int64
}

// DefaultParams returns the stock lifecycle constants.
func DefaultParams() Params {
	return Params{
		DesignatedReportingDuration: 3 * 24 * time.Hour,
		DesignatedDisputeDuration:   3 * 24 * time.Hour,
		DesignatedReporterStake:     attoUnits(2, 18),
		DesignatedDisputeBond:       attoUnits(11, 20),
		LimitedDisputeBond:          attoUnits(11, 21),
		AllDisputeBond:              attoUnits(11, 22),
		ReportingFeeBps:             1,
	}
}

// attoUnits returns n * 10^exp.
func attoUnits(n int64, exp int64) *big.Int {
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
	return pow.Mul(pow, big.NewInt(n))
}
