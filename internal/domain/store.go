package domain

import (
	"context"
	"time"
)

// WatchlistStore returns the instrument set to evaluate. Read-only from the
// engine's point of view.
type WatchlistStore interface {
	List(ctx context.Context) ([]Instrument, error)
}

// AuditStore is the append-only evaluation log plus the queries the archiver
// and the HTTP surface need.
type AuditStore interface {
	Append(ctx context.Context, ev Evaluation) error
	ListRecent(ctx context.Context, limit int) ([]Evaluation, error)
	// ListRange returns evaluations created before `before`, ordered by
	// (created_at, id) ascending, resuming strictly after the keyset
	// position (afterTime, afterID). Rows in one tick share a created_at,
	// so pagination must tie-break on id or a batch boundary inside a tick
	// skips the rest of that tick. Zero afterTime with empty afterID means
	// no lower bound.
	ListRange(ctx context.Context, afterTime time.Time, afterID string, before time.Time, limit int) ([]Evaluation, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertStateStore is the small keyed table backing the dedup state machine.
// The engine reads the whole table at tick start and point-writes at tick end
// for emitted alerts only.
type AlertStateStore interface {
	All(ctx context.Context) (map[string]AlertState, error)
	Put(ctx context.Context, st AlertState) error
}

// QuoteSource fetches the venue quote for one symbol. Implementations return
// ErrQuoteUnavailable (possibly wrapped) when the venue has no usable quote;
// that is an expected result, not a fault.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	Name() string
}

// ForeignSource fetches the foreign underlying's price snapshot.
type ForeignSource interface {
	Snapshot(ctx context.Context, symbol string) (ForeignSnapshot, error)
}

// ForeignCache caches foreign snapshots between fetches so one tick (or a
// burst of ticks) hits the vendor once per symbol.
type ForeignCache interface {
	Get(ctx context.Context, symbol string) (ForeignSnapshot, error)
	Set(ctx context.Context, snap ForeignSnapshot, ttl time.Duration) error
}

// LockManager provides a distributed per-key lock. The engine takes a
// per-instrument lock around alert-state writes so two overlapping ticks
// cannot interleave a read-then-write.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// AlertBus publishes emitted alerts for out-of-process consumers such as the
// WebSocket hub. Delivery is best-effort; publish failures never block the
// tick.
type AlertBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
