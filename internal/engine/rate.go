// Package engine contains the arbitrage signal pipeline: implied-rate and
// edge calculation, stability and liquidity filters, severity classification,
// the dedup/cooldown state machine, the session gate, and the per-tick
// orchestrator that composes them across the watch-list.
package engine

import (
	"fmt"
	"math"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// ImpliedRate derives the FX rate that would make the local price exactly
// consistent with the foreign price at the given conversion ratio:
//
//	implied = localPrice * ratio / foreignPrice
//
// in local-currency-per-foreign-currency terms. It returns
// domain.ErrInvalidInput when any operand is zero, negative, or NaN; division
// by an invalid foreign price is never attempted.
func ImpliedRate(localPrice, foreignPrice, ratio float64) (float64, error) {
	if !validPositive(localPrice) {
		return 0, fmt.Errorf("implied rate: local price %v: %w", localPrice, domain.ErrInvalidInput)
	}
	if !validPositive(foreignPrice) {
		return 0, fmt.Errorf("implied rate: foreign price %v: %w", foreignPrice, domain.ErrInvalidInput)
	}
	if !validPositive(ratio) {
		return 0, fmt.Errorf("implied rate: ratio %v: %w", ratio, domain.ErrInvalidInput)
	}
	return localPrice * ratio / foreignPrice, nil
}

// DeviationPct returns the signed percentage deviation of implied from ref.
func DeviationPct(implied, ref float64) (float64, error) {
	if !validPositive(ref) {
		return 0, fmt.Errorf("deviation: reference rate %v: %w", ref, domain.ErrInvalidInput)
	}
	if !validPositive(implied) {
		return 0, fmt.Errorf("deviation: implied rate %v: %w", implied, domain.ErrInvalidInput)
	}
	return (implied - ref) / ref * 100, nil
}

func validPositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
