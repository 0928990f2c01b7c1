package engine

import (
	"fmt"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// Edges carries the per-unit profitability of both trade directions for one
// instrument, in reference currency per local unit.
type Edges struct {
	// LocalAskUSD / LocalBidUSD: the local book's sides converted at the
	// reference rate.
	LocalAskUSD float64
	LocalBidUSD float64
	// UnderlyingUSD is the foreign value of one local unit (foreign price
	// divided by the conversion ratio).
	UnderlyingUSD float64

	// Signed gross edges: positive means the direction is economically
	// attractive before costs.
	BuyGross  float64
	SellGross float64

	// Round-trip fee estimates (entry + exit leg) per unit.
	BuyFee  float64
	SellFee float64

	// Net edges, floored at zero. A negative net edge carries no decision
	// value and must not leak into comparisons.
	BuyNet  float64
	SellNet float64
}

// ComputeEdges converts both local book sides at the reference rate, values
// the foreign underlying per local unit, and produces gross and fee-adjusted
// edges for both directions. feePctPerLeg is the broker fee percentage
// charged on each transaction leg; a round trip pays it twice.
func ComputeEdges(bid, ask, foreignPrice, ratio, refRate, feePctPerLeg float64) (Edges, error) {
	if !validPositive(refRate) {
		return Edges{}, fmt.Errorf("edges: reference rate %v: %w", refRate, domain.ErrInvalidInput)
	}
	if !validPositive(bid) || !validPositive(ask) {
		return Edges{}, fmt.Errorf("edges: book %v/%v: %w", bid, ask, domain.ErrInvalidInput)
	}
	if !validPositive(foreignPrice) || !validPositive(ratio) {
		return Edges{}, fmt.Errorf("edges: foreign %v ratio %v: %w", foreignPrice, ratio, domain.ErrInvalidInput)
	}
	if feePctPerLeg < 0 {
		return Edges{}, fmt.Errorf("edges: fee %v: %w", feePctPerLeg, domain.ErrInvalidInput)
	}

	e := Edges{
		LocalAskUSD:   ask / refRate,
		LocalBidUSD:   bid / refRate,
		UnderlyingUSD: foreignPrice / ratio,
	}

	// Buy local at the ask, realize the underlying value; sell local at the
	// bid, give up the underlying value.
	e.BuyGross = e.UnderlyingUSD - e.LocalAskUSD
	e.SellGross = e.LocalBidUSD - e.UnderlyingUSD

	roundTrip := 2 * feePctPerLeg / 100
	e.BuyFee = e.LocalAskUSD * roundTrip
	e.SellFee = e.LocalBidUSD * roundTrip

	e.BuyNet = max(e.BuyGross-e.BuyFee, 0)
	e.SellNet = max(e.SellGross-e.SellFee, 0)
	return e, nil
}

// DollarListingEdge compares the local ARS book against the paired USD
// listing directly: both marks expressed in reference currency per unit, fees
// taken on the midpoint. The returned edge is signed: positive when the ARS
// leg is cheap relative to the dollar listing.
func DollarListingEdge(localMark, dollarMark, refRate, feePctPerLeg float64) (float64, error) {
	if !validPositive(localMark) || !validPositive(dollarMark) || !validPositive(refRate) {
		return 0, fmt.Errorf("dollar edge: %w", domain.ErrInvalidInput)
	}
	localUSD := localMark / refRate
	gross := dollarMark - localUSD
	base := (localUSD + dollarMark) / 2
	fees := base * (2 * feePctPerLeg / 100)
	if gross >= 0 {
		return gross - fees, nil
	}
	return gross + fees, nil
}
