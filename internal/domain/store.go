package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market snapshots.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	ListByState(ctx context.Context, state ReportingState, opts ListOpts) ([]Market, error)
	ListUnfinalized(ctx context.Context, opts ListOpts) ([]Market, error)
	ListFinalizedBefore(ctx context.Context, cutoff time.Time, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// DisputeBondStore persists dispute bonds.
type DisputeBondStore interface {
	Create(ctx context.Context, bond DisputeBond) error
	DeleteByMarket(ctx context.Context, marketID string) error
	ListByMarket(ctx context.Context, marketID string) ([]DisputeBond, error)
	GetByID(ctx context.Context, id string) (DisputeBond, error)
}

// StakeEventKind labels entries in the append-only stake-event log.
type StakeEventKind string

const (
	EventDesignatedReport StakeEventKind = "designated_report"
	EventStake            StakeEventKind = "stake"
	EventDispute          StakeEventKind = "dispute"
	EventMigration        StakeEventKind = "migration"
	EventFinalization     StakeEventKind = "finalization"
)

// StakeEvent is one append-only row describing a stake- or bond-affecting
// action on a market.
type StakeEvent struct {
	ID         string
	MarketID   string
	Kind       StakeEventKind
	Actor      common.Address
	PayoutHash common.Hash
	Amount     *big.Int
	Round      DisputeRound
	CreatedAt  time.Time
}

// StakeEventStore persists the stake-event log.
type StakeEventStore interface {
	Insert(ctx context.Context, ev StakeEvent) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]StakeEvent, error)
	ListBefore(ctx context.Context, cutoff time.Time, opts ListOpts) ([]StakeEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
