package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// DisputeBondStore implements domain.DisputeBondStore using PostgreSQL.
type DisputeBondStore struct {
	pool *pgxpool.Pool
}

// NewDisputeBondStore creates a new DisputeBondStore backed by the given pool.
func NewDisputeBondStore(pool *pgxpool.Pool) *DisputeBondStore {
	return &DisputeBondStore{pool: pool}
}

// Create inserts a dispute bond row.
func (s *DisputeBondStore) Create(ctx context.Context, b domain.DisputeBond) error {
	const query = `
		INSERT INTO dispute_bonds (id, market_id, round, poster, amount, disputed_hash, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query,
		b.ID, b.MarketID, string(b.Round), b.Poster.Hex(),
		b.Amount.String(), b.DisputedHash.Hex(), b.PostedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create dispute bond %s: %w", b.ID, err)
	}
	return nil
}

// DeleteByMarket removes all bond rows for a market. Fork migration clears
// the bond slots; the store mirrors that.
func (s *DisputeBondStore) DeleteByMarket(ctx context.Context, marketID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dispute_bonds WHERE market_id = $1`, marketID)
	if err != nil {
		return fmt.Errorf("postgres: delete dispute bonds for market %s: %w", marketID, err)
	}
	return nil
}

// ListByMarket returns a market's bonds in posting order.
func (s *DisputeBondStore) ListByMarket(ctx context.Context, marketID string) ([]domain.DisputeBond, error) {
	const query = `
		SELECT id, market_id, round, poster, amount, disputed_hash, posted_at
		FROM dispute_bonds WHERE market_id = $1 ORDER BY posted_at`
	rows, err := s.pool.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list dispute bonds for market %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []domain.DisputeBond
	for rows.Next() {
		b, err := scanBond(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan dispute bond: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetByID returns a single bond by id.
func (s *DisputeBondStore) GetByID(ctx context.Context, id string) (domain.DisputeBond, error) {
	const query = `
		SELECT id, market_id, round, poster, amount, disputed_hash, posted_at
		FROM dispute_bonds WHERE id = $1`
	b, err := scanBond(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DisputeBond{}, fmt.Errorf("postgres: dispute bond %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.DisputeBond{}, fmt.Errorf("postgres: get dispute bond %s: %w", id, err)
	}
	return b, nil
}

func scanBond(row pgx.Row) (domain.DisputeBond, error) {
	var (
		b                           domain.DisputeBond
		round, poster, amount, hash string
	)
	if err := row.Scan(&b.ID, &b.MarketID, &round, &poster, &amount, &hash, &b.PostedAt); err != nil {
		return domain.DisputeBond{}, err
	}
	b.Round = domain.DisputeRound(round)
	b.Poster = common.HexToAddress(poster)
	b.DisputedHash = common.HexToHash(hash)
	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return domain.DisputeBond{}, fmt.Errorf("invalid amount %q", amount)
	}
	b.Amount = amt
	return b, nil
}
