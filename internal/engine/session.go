package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is an inclusive local time-of-day range, in minutes since midnight.
type Window struct {
	start int
	end   int
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("session: window %q: want HH:MM-HH:MM", s)
	}
	start, err := parseHHMM(parts[0])
	if err != nil {
		return Window{}, fmt.Errorf("session: window %q: %w", s, err)
	}
	end, err := parseHHMM(parts[1])
	if err != nil {
		return Window{}, fmt.Errorf("session: window %q: %w", s, err)
	}
	if end < start {
		return Window{}, fmt.Errorf("session: window %q ends before it starts", s)
	}
	return Window{start: start, end: end}, nil
}

func parseHHMM(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}

// Gate restricts engine evaluation to configured local trading windows.
// Outside every window the whole tick is a no-op: no fetches, no audit rows,
// no state writes, no notifications.
type Gate struct {
	loc     *time.Location
	windows []Window
}

// NewGate builds a Gate for the given IANA timezone and window specs. An
// empty window list means the gate is always open.
func NewGate(timezone string, specs []string) (*Gate, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("session: timezone %q: %w", timezone, err)
	}
	windows := make([]Window, 0, len(specs))
	for _, s := range specs {
		w, err := ParseWindow(s)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return &Gate{loc: loc, windows: windows}, nil
}

// Open reports whether t falls inside any configured window, evaluated in the
// gate's timezone. Bounds are inclusive.
func (g *Gate) Open(t time.Time) bool {
	if len(g.windows) == 0 {
		return true
	}
	local := t.In(g.loc)
	minute := local.Hour()*60 + local.Minute()
	for _, w := range g.windows {
		if minute >= w.start && minute <= w.end {
			return true
		}
	}
	return false
}
