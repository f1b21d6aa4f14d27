package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketColumns = `
	id, universe_id, window_start, num_outcomes, num_ticks, end_time,
	owner, designated_reporter, creator_fee_bps, state,
	tentative_winner, second_place, final_winner,
	designated_report_at, finalized_at, created_at, updated_at`

// Upsert inserts or updates a single market snapshot.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, universe_id, window_start, num_outcomes, num_ticks, end_time,
			owner, designated_reporter, creator_fee_bps, state,
			tentative_winner, second_place, final_winner,
			designated_report_at, finalized_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			universe_id          = EXCLUDED.universe_id,
			window_start         = EXCLUDED.window_start,
			end_time             = EXCLUDED.end_time,
			creator_fee_bps      = EXCLUDED.creator_fee_bps,
			state                = EXCLUDED.state,
			tentative_winner     = EXCLUDED.tentative_winner,
			second_place         = EXCLUDED.second_place,
			final_winner         = EXCLUDED.final_winner,
			designated_report_at = EXCLUDED.designated_report_at,
			finalized_at         = EXCLUDED.finalized_at,
			updated_at           = NOW()`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.UniverseID, m.WindowStart, m.NumOutcomes, m.NumTicks, m.EndTime,
		m.Owner.Hex(), m.DesignatedReporter.Hex(), m.CreatorFeeBps, string(m.State),
		m.TentativeWinner.Hex(), m.SecondPlace.Hex(), m.FinalWinner.Hex(),
		m.DesignatedReportAt, m.FinalizedAt, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// GetByID returns a single market snapshot by id.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListByState returns markets whose last persisted state matches.
func (s *MarketStore) ListByState(ctx context.Context, state domain.ReportingState, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE state = $1 ORDER BY end_time`
	args := []any{string(state)}
	query, args = applyPagination(query, args, opts)
	return s.listMarkets(ctx, query, args)
}

// ListUnfinalized returns markets without a committed final winner.
func (s *MarketStore) ListUnfinalized(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE finalized_at IS NULL ORDER BY end_time`
	var args []any
	query, args = applyPagination(query, args, opts)
	return s.listMarkets(ctx, query, args)
}

// ListFinalizedBefore returns markets finalized before the cutoff, oldest
// first. The archiver uses this to select cold rows.
func (s *MarketStore) ListFinalizedBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets
		WHERE finalized_at IS NOT NULL AND finalized_at < $1 ORDER BY finalized_at`
	args := []any{cutoff}
	query, args = applyPagination(query, args, opts)
	return s.listMarkets(ctx, query, args)
}

// Count returns the total number of persisted markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

func (s *MarketStore) listMarkets(ctx context.Context, query string, args []any) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m                              domain.Market
		owner, reporter, state         string
		tentative, second, finalWinner string
	)
	err := row.Scan(
		&m.ID, &m.UniverseID, &m.WindowStart, &m.NumOutcomes, &m.NumTicks, &m.EndTime,
		&owner, &reporter, &m.CreatorFeeBps, &state,
		&tentative, &second, &finalWinner,
		&m.DesignatedReportAt, &m.FinalizedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Owner = common.HexToAddress(owner)
	m.DesignatedReporter = common.HexToAddress(reporter)
	m.State = domain.ReportingState(state)
	m.TentativeWinner = common.HexToHash(tentative)
	m.SecondPlace = common.HexToHash(second)
	m.FinalWinner = common.HexToHash(finalWinner)
	return m, nil
}

// applyPagination appends LIMIT and OFFSET clauses.
func applyPagination(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
