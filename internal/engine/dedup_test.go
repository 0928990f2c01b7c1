package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arbdesk/cedearmon/internal/domain"
)

func TestDecide(t *testing.T) {
	cfg := DedupConfig{Cooldown: 30 * time.Minute, ImprovementMargin: 0.05}
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	prior := func(dir domain.Direction, netEdge float64, age time.Duration) *domain.AlertState {
		return &domain.AlertState{
			Ticker:    "VIST",
			Direction: dir,
			NetEdge:   netEdge,
			AlertedAt: now.Add(-age),
		}
	}
	opp := func(dir domain.Direction, netEdge float64) domain.Opportunity {
		return domain.Opportunity{Ticker: "VIST", Direction: dir, NetEdge: netEdge}
	}

	tests := []struct {
		name       string
		prior      *domain.AlertState
		opp        domain.Opportunity
		wantEmit   bool
		wantReason string
	}{
		{
			name:       "no_prior_state",
			prior:      nil,
			opp:        opp(domain.DirectionBuyLocal, 1.0),
			wantEmit:   true,
			wantReason: ReasonFirstAlert,
		},
		{
			name:       "direction_flip",
			prior:      prior(domain.DirectionBuyLocal, 1.0, 5*time.Minute),
			opp:        opp(domain.DirectionSellLocal, 0.3),
			wantEmit:   true,
			wantReason: ReasonDirectionFlip,
		},
		{
			name:       "cooldown_expired",
			prior:      prior(domain.DirectionBuyLocal, 1.0, 31*time.Minute),
			opp:        opp(domain.DirectionBuyLocal, 0.8),
			wantEmit:   true,
			wantReason: ReasonCooldownExpired,
		},
		{
			name:     "within_cooldown_small_improvement_suppressed",
			prior:    prior(domain.DirectionBuyLocal, 1.0, 5*time.Minute),
			opp:      opp(domain.DirectionBuyLocal, 1.02),
			wantEmit: false,
		},
		{
			name:       "within_cooldown_improvement_breaks_through",
			prior:      prior(domain.DirectionBuyLocal, 1.0, 5*time.Minute),
			opp:        opp(domain.DirectionBuyLocal, 1.06),
			wantEmit:   true,
			wantReason: ReasonImproved,
		},
		{
			name:       "improvement_exactly_at_margin_emits",
			prior:      prior(domain.DirectionBuyLocal, 1.0, 5*time.Minute),
			opp:        opp(domain.DirectionBuyLocal, 1.05),
			wantEmit:   true,
			wantReason: ReasonImproved,
		},
		{
			name:     "worsened_within_cooldown_suppressed",
			prior:    prior(domain.DirectionBuyLocal, 1.0, 5*time.Minute),
			opp:      opp(domain.DirectionBuyLocal, 0.7),
			wantEmit: false,
		},
		{
			name:     "cooldown_boundary_not_yet_expired",
			prior:    prior(domain.DirectionBuyLocal, 1.0, 30*time.Minute),
			opp:      opp(domain.DirectionBuyLocal, 1.0),
			wantEmit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := Decide(cfg, tt.prior, tt.opp, now)
			assert.Equal(t, tt.wantEmit, dec.Emit)
			assert.Equal(t, tt.wantReason, dec.Reason)
		})
	}
}
