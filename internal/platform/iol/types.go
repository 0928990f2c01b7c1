package iol

import (
	"time"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// tokenResponse is the OAuth2 token endpoint payload.
type tokenResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    float64 `json:"expires_in"`
	TokenType    string  `json:"token_type"`
}

// bookLevel is one level of the "puntas" array. The venue only ever
// populates the top level with real depth.
type bookLevel struct {
	BidPrice float64 `json:"precioCompra"`
	AskPrice float64 `json:"precioVenta"`
	BidQty   float64 `json:"cantidadCompra"`
	AskQty   float64 `json:"cantidadVenta"`
}

// quoteResponse mirrors the venue's Cotizacion payload. Field names follow
// the upstream Spanish schema.
type quoteResponse struct {
	LastPrice      float64     `json:"ultimoPrecio"`
	Settlement     string      `json:"plazo"`
	TradedNotional float64     `json:"montoOperado"`
	NominalVolume  float64     `json:"volumenNominal"`
	Book           []bookLevel `json:"puntas"`
}

// toDomain converts a venue quote into the engine's normalized form. Only
// the top-of-book level is kept.
func (q quoteResponse) toDomain(symbol, source string, at time.Time) domain.Quote {
	out := domain.Quote{
		Ticker:         symbol,
		Last:           q.LastPrice,
		Settlement:     q.Settlement,
		TradedNotional: q.TradedNotional,
		Timestamp:      at,
		Source:         source,
	}
	if len(q.Book) > 0 {
		top := q.Book[0]
		out.Bid = top.BidPrice
		out.Ask = top.AskPrice
		out.BidQty = top.BidQty
		out.AskQty = top.AskQty
	}
	return out
}
