// Package yahoo reads intraday bars from the public Yahoo Finance chart API
// and reduces them to the last close plus the change over the previous bar.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// Client fetches foreign-market snapshots from the Yahoo chart endpoint.
type Client struct {
	baseURL    string
	interval   string
	httpClient *http.Client
}

var _ domain.ForeignSource = (*Client)(nil)

// NewClient creates a Yahoo chart client.
//
// baseURL is the API root, e.g. "https://query1.finance.yahoo.com".
// interval is the bar size, e.g. "5m".
func NewClient(baseURL, interval string) *Client {
	if interval == "" {
		interval = "5m"
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		interval: interval,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// chartResponse covers the slice of the chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Snapshot returns the latest close for symbol and the percent change from
// the previous bar's close. A session with fewer than two priced bars yields
// a zero change, not an error; alerting treats unknown movement as calm.
func (c *Client) Snapshot(ctx context.Context, symbol string) (domain.ForeignSnapshot, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.interval))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.ForeignSnapshot{}, fmt.Errorf("yahoo: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// The endpoint rejects requests without a browser-like agent.
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ForeignSnapshot{}, fmt.Errorf("yahoo: chart %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ForeignSnapshot{}, fmt.Errorf("yahoo: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ForeignSnapshot{}, fmt.Errorf("yahoo: chart %s: HTTP %d: %w",
			symbol, resp.StatusCode, domain.ErrQuoteUnavailable)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return domain.ForeignSnapshot{}, fmt.Errorf("yahoo: decode chart %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		return domain.ForeignSnapshot{}, fmt.Errorf("yahoo: chart %s: %s: %w",
			symbol, chart.Chart.Error.Code, domain.ErrQuoteUnavailable)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return domain.ForeignSnapshot{}, fmt.Errorf("yahoo: chart %s: empty result: %w",
			symbol, domain.ErrQuoteUnavailable)
	}

	closes := compactCloses(chart.Chart.Result[0].Indicators.Quote[0].Close)
	if len(closes) == 0 {
		return domain.ForeignSnapshot{}, fmt.Errorf("yahoo: chart %s: no priced bars: %w",
			symbol, domain.ErrQuoteUnavailable)
	}

	snap := domain.ForeignSnapshot{
		Ticker:    symbol,
		Price:     closes[len(closes)-1],
		Timestamp: time.Now(),
	}
	if len(closes) >= 2 {
		prev := closes[len(closes)-2]
		if prev > 0 {
			snap.ChangePct = (snap.Price - prev) / prev * 100.0
		}
	}
	return snap, nil
}

// compactCloses drops null and non-positive bars. Yahoo pads the current
// session with nulls for bars that have not traded yet.
func compactCloses(raw []*float64) []float64 {
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v != nil && *v > 0 {
			out = append(out, *v)
		}
	}
	return out
}
