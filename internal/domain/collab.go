package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Clock abstracts wall-clock reads so lifecycle phase checks are testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// ForkSubject is the slice of a market that universes and reporting windows
// need: identity, finality, and the committed winner. The reporting package's
// live aggregate implements it.
type ForkSubject interface {
	ID() string
	IsFinalized() bool
	FinalPayoutHash() common.Hash
}

// ReportingWindow is a time-boxed epoch grouping markets for synchronized
// phase advancement. Attach/detach bookkeeping is notify-style; the window
// never drives market state itself.
type ReportingWindow interface {
	Universe() Universe
	StartTime() time.Time
	EndTime() time.Time
	IsReportingActive(now time.Time) bool
	IsDisputeActive(now time.Time) bool
	IsForkingMarketFinalized() bool
	UpdateMarketPhase(marketID string, state ReportingState)
	AddMarket(m ForkSubject)
	RemoveMarket(marketID string)
	MigrateMarketInFromSibling(m ForkSubject)
	MigrateMarketInFromNibling(m ForkSubject)
}

// Universe is a namespace of reporting windows sharing one staking currency.
// It splits into child universes when an all-reporters dispute forks it.
type Universe interface {
	ID() string
	ForkingMarket() ForkSubject
	Fork(m ForkSubject) error
	ForkEndTime() time.Time
	NextReportingWindow(now time.Time) ReportingWindow
	ReportingWindowForForkEndTime() ReportingWindow
	ReportingWindowByMarketEndTime(endTime time.Time, hasDesignatedReporter bool) ReportingWindow
	GetOrCreateChildUniverse(winning common.Hash) Universe
	ParentPayoutDistributionHash() common.Hash
	ReputationToken() ReputationToken
}

// ReputationToken is the universe's staking currency. Transfers initiated by
// the market core are trusted (no allowance bookkeeping).
type ReputationToken interface {
	Universe() Universe
	TotalSupply() *big.Int
	BalanceOf(addr common.Address) *big.Int
	TrustedTransfer(from, to common.Address, amount *big.Int) error
	// TopMigrationDestination returns the child universe token that has
	// received the most migrated stake, or nil if none has.
	TopMigrationDestination() ReputationToken
}
