// Package feed composes raw quote sources into the resilient forms the
// engine consumes: venue failover for local quotes and TTL caching for
// foreign snapshots.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// FallbackSource tries a primary quote source and falls back to a secondary
// on any error. The fallback's provenance is preserved so audit rows show
// which venue actually priced the instrument.
type FallbackSource struct {
	primary  domain.QuoteSource
	fallback domain.QuoteSource
	logger   *slog.Logger
}

var _ domain.QuoteSource = (*FallbackSource)(nil)

// NewFallbackSource wraps primary with fallback. fallback may be nil, in
// which case primary errors pass through unchanged.
func NewFallbackSource(primary, fallback domain.QuoteSource, logger *slog.Logger) *FallbackSource {
	return &FallbackSource{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With(slog.String("component", "feed")),
	}
}

func (s *FallbackSource) Name() string { return s.primary.Name() }

// GetQuote returns the primary's quote, or the fallback's when the primary
// fails. Both failing returns the primary's error wrapped, since that is the
// venue the caller configured as authoritative.
func (s *FallbackSource) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	q, err := s.primary.GetQuote(ctx, symbol)
	if err == nil {
		return q, nil
	}
	if s.fallback == nil {
		return domain.Quote{}, err
	}

	s.logger.WarnContext(ctx, "primary quote source failed, trying fallback",
		slog.String("symbol", symbol),
		slog.String("primary", s.primary.Name()),
		slog.String("error", err.Error()),
	)

	fq, ferr := s.fallback.GetQuote(ctx, symbol)
	if ferr != nil {
		return domain.Quote{}, fmt.Errorf("feed: all sources failed for %s: %w", symbol, err)
	}
	return fq, nil
}
