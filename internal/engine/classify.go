package engine

import (
	"math"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// ClassifierConfig holds the advisory severity thresholds. Tiers annotate
// alerts; they never gate them.
type ClassifierConfig struct {
	// Elevated thresholds: crossing either promotes baseline to elevated.
	ElevatedEdge         float64
	ElevatedDeviationPct float64
	// Critical thresholds: both must be crossed, and depth must hold at
	// DepthMultiple x lots on all four book sides.
	CriticalEdge         float64
	CriticalDeviationPct float64
	DepthMultiple        float64
}

// Classify buckets a qualifying opportunity into a severity tier, evaluated
// highest-first.
func Classify(cfg ClassifierConfig, netEdge, deviationPct float64, lots int64, entry Leg, exit *Leg) domain.Tier {
	dev := math.Abs(deviationPct)

	if netEdge >= cfg.CriticalEdge && dev >= cfg.CriticalDeviationPct &&
		DepthAtMultiple(lots, cfg.DepthMultiple, entry, exit) {
		return domain.TierCritical
	}
	if netEdge >= cfg.ElevatedEdge || dev >= cfg.ElevatedDeviationPct {
		return domain.TierElevated
	}
	return domain.TierBaseline
}
