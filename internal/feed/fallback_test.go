package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbdesk/cedearmon/internal/domain"
)

type stubSource struct {
	name  string
	quote domain.Quote
	err   error
	calls int
}

func (s *stubSource) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	s.calls++
	if s.err != nil {
		return domain.Quote{}, s.err
	}
	return s.quote, nil
}

func (s *stubSource) Name() string { return s.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallbackPrimaryWins(t *testing.T) {
	primary := &stubSource{name: "iol", quote: domain.Quote{Ticker: "VIST", Source: "iol"}}
	fallback := &stubSource{name: "backup"}
	s := NewFallbackSource(primary, fallback, discardLogger())

	q, err := s.GetQuote(context.Background(), "VIST")
	require.NoError(t, err)
	assert.Equal(t, "iol", q.Source)
	assert.Zero(t, fallback.calls)
	assert.Equal(t, "iol", s.Name())
}

func TestFallbackUsedOnPrimaryError(t *testing.T) {
	primary := &stubSource{name: "iol", err: domain.ErrQuoteUnavailable}
	fallback := &stubSource{name: "backup", quote: domain.Quote{Ticker: "VIST", Source: "backup"}}
	s := NewFallbackSource(primary, fallback, discardLogger())

	q, err := s.GetQuote(context.Background(), "VIST")
	require.NoError(t, err)
	assert.Equal(t, "backup", q.Source)
}

func TestFallbackBothFailReturnsPrimaryError(t *testing.T) {
	primaryErr := errors.New("primary down")
	primary := &stubSource{name: "iol", err: primaryErr}
	fallback := &stubSource{name: "backup", err: errors.New("backup down")}
	s := NewFallbackSource(primary, fallback, discardLogger())

	_, err := s.GetQuote(context.Background(), "VIST")
	require.Error(t, err)
	assert.True(t, errors.Is(err, primaryErr))
}

func TestFallbackNilSecondaryPassesThrough(t *testing.T) {
	primary := &stubSource{name: "iol", err: domain.ErrQuoteUnavailable}
	s := NewFallbackSource(primary, nil, discardLogger())

	_, err := s.GetQuote(context.Background(), "VIST")
	assert.True(t, errors.Is(err, domain.ErrQuoteUnavailable))
}
