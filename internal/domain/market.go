package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ReportingState is the lifecycle phase of a market, derived from stored
// flags and the clock. It is never cached; query it fresh before any action.
type ReportingState string

const (
	StatePreReporting              ReportingState = "PRE_REPORTING"
	StateDesignatedReporting       ReportingState = "DESIGNATED_REPORTING"
	StateDesignatedDispute         ReportingState = "DESIGNATED_DISPUTE"
	StateLimitedReporting          ReportingState = "LIMITED_REPORTING"
	StateLimitedDispute            ReportingState = "LIMITED_DISPUTE"
	StateAllReporting              ReportingState = "ALL_REPORTING"
	StateAllDispute                ReportingState = "ALL_DISPUTE"
	StateForking                   ReportingState = "FORKING"
	StateAwaitingForkMigration     ReportingState = "AWAITING_FORK_MIGRATION"
	StateAwaitingNoReportMigration ReportingState = "AWAITING_NO_REPORT_MIGRATION"
	StateAwaitingFinalization      ReportingState = "AWAITING_FINALIZATION"
	StateFinalized                 ReportingState = "FINALIZED"
)

// Market is the persisted and API-facing snapshot of a market aggregate.
// The live aggregate lives in the reporting package; this struct is what
// stores, handlers, and the archiver see.
type Market struct {
	ID                 string
	UniverseID         string
	WindowStart        time.Time
	NumOutcomes        int
	NumTicks           int64
	EndTime            time.Time
	Owner              common.Address
	DesignatedReporter common.Address
	CreatorFeeBps      int64
	State              ReportingState
	TentativeWinner    common.Hash
	SecondPlace        common.Hash
	FinalWinner        common.Hash
	DesignatedReportAt *time.Time
	FinalizedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Finalized reports whether the snapshot has a committed final winner.
func (m Market) Finalized() bool {
	return m.FinalWinner != (common.Hash{})
}

// ShareToken is one of the market's fixed per-outcome share token handles,
// created once at initialization.
type ShareToken struct {
	ID       string
	MarketID string
	Outcome  int
}

// StakeTokenView is a read-only view of the stake backing one payout
// distribution hash.
type StakeTokenView struct {
	Hash        common.Hash
	Payout      PayoutDistribution
	TotalSupply *big.Int
}
