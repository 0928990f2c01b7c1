package domain

import "time"

// AlertState is the per-instrument dedup record: the last direction alerted,
// when, and at what net edge. It is the only entity with cross-tick lifetime.
// It is read in full at tick start and conditionally overwritten per
// instrument at tick end, only when an alert is actually emitted.
type AlertState struct {
	Ticker    string
	Direction Direction
	NetEdge   float64
	AlertedAt time.Time
}
