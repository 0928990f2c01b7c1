package domain

import "time"

// Evaluation is one append-only audit row: the full field set observed and
// derived for one instrument in one tick. Rows are written for every
// instrument that produced a usable quote pair, whether or not an alert
// fired.
type Evaluation struct {
	ID     string
	TickID string
	Ticker string
	Ratio  float64

	// Foreign leg.
	ForeignPrice     float64
	ForeignChangePct float64

	// Local leg (ARS book).
	LocalBid       float64
	LocalAsk       float64
	LocalBidQty    float64
	LocalAskQty    float64
	Settlement     string
	TradedNotional float64

	// Optional paired USD listing.
	DollarBid float64
	DollarAsk float64

	ReferenceRate float64

	ImpliedBuy       float64
	ImpliedSell      float64
	DeviationBuyPct  float64
	DeviationSellPct float64
	EdgeBuyGross     float64
	EdgeSellGross    float64
	FeeBuy           float64
	FeeSell          float64
	EdgeBuyNet       float64
	EdgeSellNet      float64
	DollarEdgeNet    float64

	Unstable       bool
	Alerted        bool
	AlertDirection Direction
	Tier           Tier
	Source         string
	CreatedAt      time.Time
}
