package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// AlertStateStore implements domain.AlertStateStore using PostgreSQL.
// State survives restarts so a relaunched process does not re-alert inside
// a running cooldown.
type AlertStateStore struct {
	pool *pgxpool.Pool
}

var _ domain.AlertStateStore = (*AlertStateStore)(nil)

// NewAlertStateStore creates a new AlertStateStore backed by the given pool.
func NewAlertStateStore(pool *pgxpool.Pool) *AlertStateStore {
	return &AlertStateStore{pool: pool}
}

// All returns every stored alert state keyed by ticker.
func (s *AlertStateStore) All(ctx context.Context) (map[string]domain.AlertState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ticker, direction, net_edge, alerted_at FROM alert_state`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load alert states: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.AlertState)
	for rows.Next() {
		var st domain.AlertState
		var direction string
		if err := rows.Scan(&st.Ticker, &direction, &st.NetEdge, &st.AlertedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan alert state: %w", err)
		}
		st.Direction = domain.Direction(direction)
		out[st.Ticker] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: alert state rows: %w", err)
	}
	return out, nil
}

// Put overwrites the state for one ticker.
func (s *AlertStateStore) Put(ctx context.Context, st domain.AlertState) error {
	const query = `
		INSERT INTO alert_state (ticker, direction, net_edge, alerted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker) DO UPDATE SET
			direction = EXCLUDED.direction,
			net_edge = EXCLUDED.net_edge,
			alerted_at = EXCLUDED.alerted_at`

	_, err := s.pool.Exec(ctx, query,
		st.Ticker, string(st.Direction), st.NetEdge, st.AlertedAt)
	if err != nil {
		return fmt.Errorf("postgres: put alert state %s: %w", st.Ticker, err)
	}
	return nil
}
