// Package domain defines the core entities and port interfaces of the CEDEAR
// arbitrage monitor. All price and size values are float64 in the instrument's
// native currency unless a field name says otherwise.
package domain

import "strings"

// InstrumentKind distinguishes locally listed depositary receipts from the
// foreign underlying shares they represent.
type InstrumentKind string

const (
	KindCEDEAR     InstrumentKind = "cedear"
	KindUnderlying InstrumentKind = "underlying"
)

// Instrument is one watch-list entry. It is immutable for the duration of a
// tick; the watch-list store produces a fresh set every tick.
type Instrument struct {
	// Ticker is the local (BYMA) symbol, e.g. "VIST".
	Ticker string
	Kind   InstrumentKind
	// Ratio is the conversion ratio between the local instrument and the
	// foreign underlying (CEDEARs per underlying share, e.g. 3 for VIST).
	Ratio float64
	// ForeignTicker is the foreign listing symbol. Empty means same as Ticker.
	ForeignTicker string
	// DollarTicker is the optional USD-denominated local listing ("especie D",
	// conventionally Ticker+"D"). Empty when the instrument has none.
	DollarTicker string
}

// Foreign returns the foreign listing symbol, defaulting to the local ticker.
func (i Instrument) Foreign() string {
	if s := strings.TrimSpace(i.ForeignTicker); s != "" {
		return s
	}
	return i.Ticker
}

// Valid reports whether the instrument can be evaluated at all.
func (i Instrument) Valid() bool {
	return strings.TrimSpace(i.Ticker) != "" && i.Ratio > 0
}
