package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL. One row per
// instrument per tick; alert outcomes are flags on the row, not a separate
// table.
type AuditStore struct {
	pool *pgxpool.Pool
}

var _ domain.AuditStore = (*AuditStore)(nil)

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

const evaluationColumns = `
	id, tick_id, ticker, ratio, foreign_price, foreign_change_pct,
	local_bid, local_ask, local_bid_qty, local_ask_qty,
	settlement, traded_notional, dollar_bid, dollar_ask,
	reference_rate, implied_buy, implied_sell,
	deviation_buy_pct, deviation_sell_pct,
	edge_buy_gross, edge_sell_gross, fee_buy, fee_sell,
	edge_buy_net, edge_sell_net, dollar_edge_net,
	unstable, alerted, alert_direction, tier, source, created_at`

// Append inserts one evaluation row.
func (s *AuditStore) Append(ctx context.Context, ev domain.Evaluation) error {
	const query = `
		INSERT INTO evaluations (` + evaluationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
			$27, $28, $29, $30, $31, $32)`

	_, err := s.pool.Exec(ctx, query,
		ev.ID, ev.TickID, ev.Ticker, ev.Ratio, ev.ForeignPrice, ev.ForeignChangePct,
		ev.LocalBid, ev.LocalAsk, ev.LocalBidQty, ev.LocalAskQty,
		ev.Settlement, ev.TradedNotional, ev.DollarBid, ev.DollarAsk,
		ev.ReferenceRate, ev.ImpliedBuy, ev.ImpliedSell,
		ev.DeviationBuyPct, ev.DeviationSellPct,
		ev.EdgeBuyGross, ev.EdgeSellGross, ev.FeeBuy, ev.FeeSell,
		ev.EdgeBuyNet, ev.EdgeSellNet, ev.DollarEdgeNet,
		ev.Unstable, ev.Alerted, string(ev.AlertDirection), string(ev.Tier), ev.Source, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append evaluation %s: %w", ev.Ticker, err)
	}
	return nil
}

// ListRecent returns the newest evaluations, newest first.
func (s *AuditStore) ListRecent(ctx context.Context, limit int) ([]domain.Evaluation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + evaluationColumns + `
		FROM evaluations ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent evaluations: %w", err)
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

// ListRange returns evaluations created before `before`, ordered by
// (created_at, id), resuming strictly after the (afterTime, afterID) keyset
// position. The archiver drains history through this in batches, advancing
// the keyset past each batch; the id tie-break keeps rows stamped with the
// same tick timestamp from falling between batches.
func (s *AuditStore) ListRange(ctx context.Context, afterTime time.Time, afterID string, before time.Time, limit int) ([]domain.Evaluation, error) {
	if limit <= 0 {
		limit = 1000
	}
	if afterID == "" {
		afterID = "00000000-0000-0000-0000-000000000000"
	}
	query := `SELECT ` + evaluationColumns + `
		FROM evaluations
		WHERE (created_at, id) > ($1, $2::uuid) AND created_at < $3
		ORDER BY created_at ASC, id ASC LIMIT $4`

	rows, err := s.pool.Query(ctx, query, afterTime, afterID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list evaluations before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

// DeleteBefore removes evaluations created strictly before cutoff and
// reports how many rows went away.
func (s *AuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM evaluations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete evaluations before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func scanEvaluations(rows pgx.Rows) ([]domain.Evaluation, error) {
	var out []domain.Evaluation
	for rows.Next() {
		var ev domain.Evaluation
		var direction, tier string
		err := rows.Scan(
			&ev.ID, &ev.TickID, &ev.Ticker, &ev.Ratio, &ev.ForeignPrice, &ev.ForeignChangePct,
			&ev.LocalBid, &ev.LocalAsk, &ev.LocalBidQty, &ev.LocalAskQty,
			&ev.Settlement, &ev.TradedNotional, &ev.DollarBid, &ev.DollarAsk,
			&ev.ReferenceRate, &ev.ImpliedBuy, &ev.ImpliedSell,
			&ev.DeviationBuyPct, &ev.DeviationSellPct,
			&ev.EdgeBuyGross, &ev.EdgeSellGross, &ev.FeeBuy, &ev.FeeSell,
			&ev.EdgeBuyNet, &ev.EdgeSellNet, &ev.DollarEdgeNet,
			&ev.Unstable, &ev.Alerted, &direction, &tier, &ev.Source, &ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan evaluation: %w", err)
		}
		ev.AlertDirection = domain.Direction(direction)
		ev.Tier = domain.Tier(tier)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: evaluation rows: %w", err)
	}
	return out, nil
}
