package iol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuoteResponseToDomain(t *testing.T) {
	at := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	resp := quoteResponse{
		LastPrice:      14050,
		Settlement:     "T1",
		TradedNotional: 5_000_000,
		Book: []bookLevel{
			{BidPrice: 13900, AskPrice: 14100, BidQty: 120, AskQty: 80},
			{BidPrice: 13800, AskPrice: 14200, BidQty: 500, AskQty: 500},
		},
	}

	q := resp.toDomain("VIST", "iol", at)
	assert.Equal(t, "VIST", q.Ticker)
	assert.Equal(t, 13900.0, q.Bid)
	assert.Equal(t, 14100.0, q.Ask)
	assert.Equal(t, 120.0, q.BidQty)
	assert.Equal(t, 80.0, q.AskQty)
	assert.Equal(t, 14050.0, q.Last)
	assert.Equal(t, "T1", q.Settlement)
	assert.Equal(t, 5_000_000.0, q.TradedNotional)
	assert.Equal(t, "iol", q.Source)
	assert.Equal(t, at, q.Timestamp)
	assert.True(t, q.HasBook())
}

func TestQuoteResponseToDomainEmptyBook(t *testing.T) {
	resp := quoteResponse{LastPrice: 14050, Settlement: "CI"}

	q := resp.toDomain("VIST", "iol", time.Now())
	assert.False(t, q.HasBook())
	assert.Zero(t, q.Bid)
	assert.Zero(t, q.Ask)

	mark, ok := q.Mark()
	assert.True(t, ok)
	assert.Equal(t, 14050.0, mark)
}
