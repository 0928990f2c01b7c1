package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// CachedForeignSource reads foreign snapshots through a shared cache so
// parallel engine instances do not hammer the upstream chart API for the
// same symbol every tick.
type CachedForeignSource struct {
	inner  domain.ForeignSource
	cache  domain.ForeignCache
	ttl    time.Duration
	logger *slog.Logger
}

var _ domain.ForeignSource = (*CachedForeignSource)(nil)

// NewCachedForeignSource wraps inner with cache. cache may be nil; the
// source then degrades to a direct pass-through.
func NewCachedForeignSource(inner domain.ForeignSource, cache domain.ForeignCache, ttl time.Duration, logger *slog.Logger) *CachedForeignSource {
	return &CachedForeignSource{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "feed")),
	}
}

// Snapshot serves from cache when a fresh entry exists, otherwise fetches
// from the inner source and writes the result back. Cache errors never fail
// the fetch.
func (s *CachedForeignSource) Snapshot(ctx context.Context, symbol string) (domain.ForeignSnapshot, error) {
	if s.cache != nil {
		if snap, err := s.cache.Get(ctx, symbol); err == nil && snap.Valid() {
			return snap, nil
		}
	}

	snap, err := s.inner.Snapshot(ctx, symbol)
	if err != nil {
		return domain.ForeignSnapshot{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snap, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "foreign cache write failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}
	return snap, nil
}
