package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// WatchlistStore implements domain.WatchlistStore using PostgreSQL.
type WatchlistStore struct {
	pool *pgxpool.Pool
}

var _ domain.WatchlistStore = (*WatchlistStore)(nil)

// NewWatchlistStore creates a new WatchlistStore backed by the given pool.
func NewWatchlistStore(pool *pgxpool.Pool) *WatchlistStore {
	return &WatchlistStore{pool: pool}
}

// List returns all enabled instruments, alphabetically by ticker so tick
// logs stay comparable run to run.
func (s *WatchlistStore) List(ctx context.Context) ([]domain.Instrument, error) {
	const query = `
		SELECT ticker, kind, ratio, foreign_ticker, dollar_ticker
		FROM watchlist
		WHERE enabled
		ORDER BY ticker`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watchlist: %w", err)
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		var kind string
		if err := rows.Scan(&inst.Ticker, &kind, &inst.Ratio, &inst.ForeignTicker, &inst.DollarTicker); err != nil {
			return nil, fmt.Errorf("postgres: scan watchlist row: %w", err)
		}
		inst.Kind = domain.InstrumentKind(kind)
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list watchlist rows: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces a watchlist entry.
func (s *WatchlistStore) Upsert(ctx context.Context, inst domain.Instrument) error {
	const query = `
		INSERT INTO watchlist (ticker, kind, ratio, foreign_ticker, dollar_ticker, enabled)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (ticker) DO UPDATE SET
			kind = EXCLUDED.kind,
			ratio = EXCLUDED.ratio,
			foreign_ticker = EXCLUDED.foreign_ticker,
			dollar_ticker = EXCLUDED.dollar_ticker,
			enabled = TRUE`

	_, err := s.pool.Exec(ctx, query,
		inst.Ticker, string(inst.Kind), inst.Ratio, inst.ForeignTicker, inst.DollarTicker)
	if err != nil {
		return fmt.Errorf("postgres: upsert watchlist %s: %w", inst.Ticker, err)
	}
	return nil
}
