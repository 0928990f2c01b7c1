package engine

import "math"

// Unstable reports whether the foreign underlying moved too fast over the
// lookback window for the current tick's quotes to be trusted as an FX-driven
// spread. A move exactly at the threshold is still considered stable.
func Unstable(changePct, maxAbsPct float64) bool {
	return math.Abs(changePct) > maxAbsPct
}
