package domain

import "time"

// Quote is a normalized top-of-book snapshot for one instrument on one venue.
// Quotes are produced fresh every tick and never mutated after creation. A
// zero value for any price field means "not quoted", never "price is zero".
type Quote struct {
	Ticker string
	Bid    float64
	Ask    float64
	Last   float64
	BidQty float64
	AskQty float64
	// Settlement is the venue settlement term code, e.g. "CI" or "T1".
	// Reference-rate legs and paired listings must agree on it to be
	// comparable.
	Settlement string
	// TradedNotional is the session's traded notional in the quote currency.
	TradedNotional float64
	Timestamp      time.Time
	Source         string
}

// HasBook reports whether both top-of-book sides are quoted.
func (q Quote) HasBook() bool {
	return q.Bid > 0 && q.Ask > 0
}

// Mark returns the tradable reference price: the bid/ask midpoint when both
// sides are quoted, otherwise the last trade. ok is false when neither is
// available.
func (q Quote) Mark() (price float64, ok bool) {
	if q.HasBook() {
		return (q.Bid + q.Ask) / 2, true
	}
	if q.Last > 0 {
		return q.Last, true
	}
	return 0, false
}

// ForeignSnapshot is the normalized view of the foreign underlying: its last
// price and the short-window percentage change used by the stability filter.
type ForeignSnapshot struct {
	Ticker string
	// Price is the latest foreign-currency price of one underlying share.
	Price float64
	// ChangePct is the percentage move over the configured lookback window
	// (e.g. the last two 5-minute bars).
	ChangePct float64
	Timestamp time.Time
}

// Valid reports whether the snapshot carries a usable price.
func (s ForeignSnapshot) Valid() bool {
	return s.Price > 0
}
