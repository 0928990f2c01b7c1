package domain

import "time"

// Direction identifies which way a cross-market arbitrage would be traded.
type Direction string

const (
	// DirectionBuyLocal: the local instrument is cheap versus the reference
	// rate, so buy locally and exit through the foreign leg.
	DirectionBuyLocal Direction = "buy_local"
	// DirectionSellLocal: the local instrument is rich versus the reference
	// rate, so sell locally and re-enter through the foreign leg.
	DirectionSellLocal Direction = "sell_local"
)

// Tier is the advisory severity label attached to an opportunity. It never
// gates whether an alert fires.
type Tier string

const (
	TierBaseline Tier = "baseline"
	TierElevated Tier = "elevated"
	TierCritical Tier = "critical"
)

// Opportunity is the fully derived result of evaluating one instrument in one
// direction against the reference rate. It is recomputed every tick and is
// never persisted as identity.
type Opportunity struct {
	Ticker        string
	Direction     Direction
	ImpliedRate   float64
	ReferenceRate float64
	// DeviationPct is the signed percentage deviation of the implied rate
	// from the reference rate.
	DeviationPct float64
	// GrossEdge, Fee, and NetEdge are per local unit, in reference currency.
	GrossEdge float64
	Fee       float64
	NetEdge   float64
	// LotsNeeded is the number of local units required to fill the target
	// notional against the exit leg.
	LotsNeeded int64
	Tier       Tier
	// DollarEdgeNet is the optional local-vs-dollar-listing net edge when the
	// instrument has a paired USD listing; zero when not computed.
	DollarEdgeNet float64
	DetectedAt    time.Time
}

// Alert is an Opportunity that passed every filter and the dedup decision.
type Alert struct {
	ID     string
	Reason string // what unlocked the emission: first_alert, direction_flip, ...
	Opportunity
}
