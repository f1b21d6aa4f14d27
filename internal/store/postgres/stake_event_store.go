package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// StakeEventStore implements domain.StakeEventStore using PostgreSQL.
type StakeEventStore struct {
	pool *pgxpool.Pool
}

// NewStakeEventStore creates a new StakeEventStore backed by the given pool.
func NewStakeEventStore(pool *pgxpool.Pool) *StakeEventStore {
	return &StakeEventStore{pool: pool}
}

// Insert appends one stake event.
func (s *StakeEventStore) Insert(ctx context.Context, ev domain.StakeEvent) error {
	const query = `
		INSERT INTO stake_events (id, market_id, kind, actor, payout_hash, amount, round, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	amount := "0"
	if ev.Amount != nil {
		amount = ev.Amount.String()
	}
	_, err := s.pool.Exec(ctx, query,
		ev.ID, ev.MarketID, string(ev.Kind), ev.Actor.Hex(),
		ev.PayoutHash.Hex(), amount, string(ev.Round), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert stake event %s: %w", ev.ID, err)
	}
	return nil
}

// ListByMarket returns a market's stake events in insertion order.
func (s *StakeEventStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	query := `
		SELECT id, market_id, kind, actor, payout_hash, amount, round, created_at
		FROM stake_events WHERE market_id = $1 ORDER BY created_at`
	args := []any{marketID}
	query, args = applyPagination(query, args, opts)
	return s.list(ctx, query, args)
}

// ListBefore returns events older than the cutoff, oldest first. The archiver
// uses this to page cold rows out to object storage.
func (s *StakeEventStore) ListBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	query := `
		SELECT id, market_id, kind, actor, payout_hash, amount, round, created_at
		FROM stake_events WHERE created_at < $1 ORDER BY created_at`
	args := []any{cutoff}
	query, args = applyPagination(query, args, opts)
	return s.list(ctx, query, args)
}

// DeleteBefore removes events older than the cutoff and reports how many rows
// went away.
func (s *StakeEventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stake_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete stake events before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

func (s *StakeEventStore) list(ctx context.Context, query string, args []any) ([]domain.StakeEvent, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stake events: %w", err)
	}
	defer rows.Close()

	var out []domain.StakeEvent
	for rows.Next() {
		ev, err := scanStakeEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan stake event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanStakeEvent(row pgx.Row) (domain.StakeEvent, error) {
	var (
		ev                               domain.StakeEvent
		kind, actor, hash, amount, round string
	)
	err := row.Scan(&ev.ID, &ev.MarketID, &kind, &actor, &hash, &amount, &round, &ev.CreatedAt)
	if err != nil {
		return domain.StakeEvent{}, err
	}
	ev.Kind = domain.StakeEventKind(kind)
	ev.Actor = common.HexToAddress(actor)
	ev.PayoutHash = common.HexToHash(hash)
	ev.Round = domain.DisputeRound(round)
	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return domain.StakeEvent{}, fmt.Errorf("invalid amount %q", amount)
	}
	ev.Amount = amt
	return ev, nil
}
