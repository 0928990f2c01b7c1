package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnstable(t *testing.T) {
	tests := []struct {
		name      string
		changePct float64
		maxAbsPct float64
		want      bool
	}{
		{name: "calm", changePct: 0.10, maxAbsPct: 0.25, want: false},
		{name: "exactly_at_threshold", changePct: 0.25, maxAbsPct: 0.25, want: false},
		{name: "above_threshold", changePct: 0.30, maxAbsPct: 0.25, want: true},
		{name: "negative_move_counts", changePct: -0.30, maxAbsPct: 0.25, want: true},
		{name: "no_movement", changePct: 0, maxAbsPct: 0.25, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unstable(tt.changePct, tt.maxAbsPct))
		})
	}
}
