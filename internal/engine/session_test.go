package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{spec: "11:15-12:00"},
		{spec: " 14:00 - 16:45 "},
		{spec: "00:00-23:59"},
		{spec: "12:00-12:00"},
		{spec: "12:00", wantErr: true},
		{spec: "12:00-11:00", wantErr: true},
		{spec: "25:00-26:00", wantErr: true},
		{spec: "11:60-12:00", wantErr: true},
		{spec: "aa:bb-cc:dd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := ParseWindow(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGateOpen(t *testing.T) {
	gate, err := NewGate("America/Argentina/Buenos_Aires", []string{"11:15-12:00", "14:00-16:45"})
	require.NoError(t, err)

	// Buenos Aires is UTC-3 year round.
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 10, h+3, m, 0, 0, time.UTC)
	}

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{name: "before_first_window", t: at(11, 14), want: false},
		{name: "first_window_start_inclusive", t: at(11, 15), want: true},
		{name: "inside_first_window", t: at(11, 40), want: true},
		{name: "first_window_end_inclusive", t: at(12, 0), want: true},
		{name: "lunch_gap", t: at(13, 0), want: false},
		{name: "inside_second_window", t: at(15, 30), want: true},
		{name: "second_window_end_inclusive", t: at(16, 45), want: true},
		{name: "after_close", t: at(16, 46), want: false},
		{name: "overnight", t: at(3, 0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Open(tt.t))
		})
	}
}

func TestGateEmptyWindowsAlwaysOpen(t *testing.T) {
	gate, err := NewGate("UTC", nil)
	require.NoError(t, err)
	assert.True(t, gate.Open(time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)))
}

func TestNewGateBadInputs(t *testing.T) {
	_, err := NewGate("Not/AZone", nil)
	assert.Error(t, err)

	_, err = NewGate("UTC", []string{"nope"})
	assert.Error(t, err)
}
