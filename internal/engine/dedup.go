package engine

import (
	"time"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// DedupConfig controls the per-instrument alert suppression window.
type DedupConfig struct {
	// Cooldown is how long a repeat alert in the same direction is
	// suppressed unless it improves.
	Cooldown time.Duration
	// ImprovementMargin is the minimum net-edge gain over the stored alert
	// that breaks through the cooldown.
	ImprovementMargin float64
}

// Reasons an alert was allowed through the dedup state machine.
const (
	ReasonFirstAlert      = "first_alert"
	ReasonDirectionFlip   = "direction_flip"
	ReasonCooldownExpired = "cooldown_expired"
	ReasonImproved        = "improved"
)

// Decision is the outcome of the dedup state machine for one candidate.
type Decision struct {
	Emit   bool
	Reason string
}

// Decide applies the transition rule against the stored per-instrument state:
// emit when no prior state exists, when the direction flipped, when the
// cooldown has elapsed, or when the net edge improved by at least the margin.
// Otherwise suppress. The caller overwrites the state only on emission;
// suppression never touches stored state, so a signal fluctuating around the
// threshold cannot flood alerts.
func Decide(cfg DedupConfig, prior *domain.AlertState, opp domain.Opportunity, now time.Time) Decision {
	if prior == nil {
		return Decision{Emit: true, Reason: ReasonFirstAlert}
	}
	if opp.Direction != prior.Direction {
		return Decision{Emit: true, Reason: ReasonDirectionFlip}
	}
	if now.Sub(prior.AlertedAt) > cfg.Cooldown {
		return Decision{Emit: true, Reason: ReasonCooldownExpired}
	}
	if opp.NetEdge-prior.NetEdge >= cfg.ImprovementMargin {
		return Decision{Emit: true, Reason: ReasonImproved}
	}
	return Decision{}
}
