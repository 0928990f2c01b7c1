package engine

import (
	"fmt"
	"math"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// Leg is the top-of-book view of one side of the trade.
type Leg struct {
	Bid    float64
	Ask    float64
	BidQty float64
	AskQty float64
}

// SizingConfig controls the liquidity filter.
type SizingConfig struct {
	// TargetNotional is the intended trade size in reference currency.
	TargetNotional float64
	// DepthMultiplier scales the required lot count into a minimum quoted
	// size on every book side.
	DepthMultiplier float64
	// DepthFloor is the absolute minimum quoted size regardless of the
	// scaled requirement.
	DepthFloor int64
}

// LotsNeeded returns ceil(targetNotional / exitPrice): the number of local
// units that must trade on the exit leg to realize the target notional.
func LotsNeeded(targetNotional, exitPrice float64) (int64, error) {
	if !validPositive(targetNotional) {
		return 0, fmt.Errorf("sizing: target notional %v: %w", targetNotional, domain.ErrInvalidInput)
	}
	if !validPositive(exitPrice) {
		return 0, fmt.Errorf("sizing: exit price %v: %w", exitPrice, domain.ErrInvalidInput)
	}
	return int64(math.Ceil(targetNotional / exitPrice)), nil
}

// CheckLiquidity sizes the trade against live depth. exitPrice is the
// best-quote price on the exit leg in reference currency per local unit.
// entry is the leg hit first (the local book); exit may be nil when the exit
// instrument has no visible book (foreign underlying priced off-venue), in
// which case only the entry leg is constrained.
//
// For DirectionBuyLocal the trade lifts the entry ask and hits the exit bid;
// for DirectionSellLocal it hits the entry bid and lifts the exit ask. The
// hit side of each leg must hold at least the required lots, and every quoted
// side of both legs must hold the scaled minimum. A raw deviation signal is
// meaningless if quoted depth cannot absorb the intended size.
func CheckLiquidity(cfg SizingConfig, dir domain.Direction, entry Leg, exit *Leg, exitPrice float64) (lots int64, ok bool) {
	lots, err := LotsNeeded(cfg.TargetNotional, exitPrice)
	if err != nil {
		return 0, false
	}

	scaledMin := int64(math.Ceil(cfg.DepthMultiplier * float64(lots)))
	if scaledMin < cfg.DepthFloor {
		scaledMin = cfg.DepthFloor
	}

	if !depthAtLeast(entry, scaledMin) {
		return lots, false
	}
	if exit != nil && !depthAtLeast(*exit, scaledMin) {
		return lots, false
	}

	switch dir {
	case domain.DirectionBuyLocal:
		if entry.AskQty < float64(lots) {
			return lots, false
		}
		if exit != nil && exit.BidQty < float64(lots) {
			return lots, false
		}
	case domain.DirectionSellLocal:
		if entry.BidQty < float64(lots) {
			return lots, false
		}
		if exit != nil && exit.AskQty < float64(lots) {
			return lots, false
		}
	default:
		return lots, false
	}
	return lots, true
}

// DepthAtMultiple reports whether every quoted side of both legs holds at
// least multiple x lots. Used by the classifier's top tier, which demands
// depth on all four book sides at a larger multiple than the filter itself.
func DepthAtMultiple(lots int64, multiple float64, entry Leg, exit *Leg) bool {
	need := int64(math.Ceil(multiple * float64(lots)))
	if !depthAtLeast(entry, need) {
		return false
	}
	if exit != nil && !depthAtLeast(*exit, need) {
		return false
	}
	return true
}

func depthAtLeast(l Leg, need int64) bool {
	return l.BidQty >= float64(need) && l.AskQty >= float64(need)
}
