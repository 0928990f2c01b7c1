package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbdesk/cedearmon/internal/domain"
)

type fakeWatchlist struct {
	instruments []domain.Instrument
}

func (f *fakeWatchlist) List(ctx context.Context) ([]domain.Instrument, error) {
	return f.instruments, nil
}

type fakeQuotes struct {
	quotes map[string]domain.Quote
	errs   map[string]error
}

func (f *fakeQuotes) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if err, ok := f.errs[symbol]; ok {
		return domain.Quote{}, err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteUnavailable
	}
	return q, nil
}

func (f *fakeQuotes) Name() string { return "fake" }

type fakeForeign struct {
	snaps map[string]domain.ForeignSnapshot
}

func (f *fakeForeign) Snapshot(ctx context.Context, symbol string) (domain.ForeignSnapshot, error) {
	s, ok := f.snaps[symbol]
	if !ok {
		return domain.ForeignSnapshot{}, domain.ErrQuoteUnavailable
	}
	return s, nil
}

type fakeAudit struct {
	mu   sync.Mutex
	rows []domain.Evaluation
}

func (f *fakeAudit) Append(ctx context.Context, ev domain.Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, ev)
	return nil
}

func (f *fakeAudit) ListRecent(ctx context.Context, limit int) ([]domain.Evaluation, error) {
	return nil, nil
}

func (f *fakeAudit) ListRange(ctx context.Context, afterTime time.Time, afterID string, before time.Time, limit int) ([]domain.Evaluation, error) {
	return nil, nil
}

func (f *fakeAudit) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeStates struct {
	mu     sync.Mutex
	states map[string]domain.AlertState
	puts   []domain.AlertState
}

func (f *fakeStates) All(ctx context.Context) (map[string]domain.AlertState, error) {
	if f.states == nil {
		return map[string]domain.AlertState{}, nil
	}
	return f.states, nil
}

func (f *fakeStates) Put(ctx context.Context, st domain.AlertState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, st)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		MinDeviationPct: 0.6,
		MinNetEdge:      0,
		FeePctPerLeg:    0.5,
		SettlementTerm:  "T1",
		MaxConcurrency:  2,
		Reference:       ReferenceConfig{LocalLeg: "AL30", DollarLeg: "AL30D"},
		Sizing:          SizingConfig{TargetNotional: 500, DepthMultiplier: 1, DepthFloor: 1},
		Classifier: ClassifierConfig{
			ElevatedEdge:         0.5,
			ElevatedDeviationPct: 1.2,
			CriticalEdge:         1.0,
			CriticalDeviationPct: 2.0,
			DepthMultiple:        4,
		},
		Dedup:     DedupConfig{Cooldown: 30 * time.Minute, ImprovementMargin: 0.05},
		Stability: StabilityConfig{MaxChangePct: 0.25},
	}
}

// referenceQuotes returns bond legs whose marks yield an FX reference of 1400.
func referenceQuotes() map[string]domain.Quote {
	return map[string]domain.Quote{
		"AL30":  {Ticker: "AL30", Bid: 13900, Ask: 14100, Settlement: "T1"},
		"AL30D": {Ticker: "AL30D", Bid: 9.9, Ask: 10.1, Settlement: "T1"},
	}
}

func vistInstrument() domain.Instrument {
	return domain.Instrument{Ticker: "VIST", Kind: domain.KindCEDEAR, Ratio: 3}
}

// vistQuote is deeply mispriced against a foreign price of 45: underlying
// worth 15 USD per unit against a local ask near 10 USD.
func vistQuote() domain.Quote {
	return domain.Quote{
		Ticker: "VIST", Bid: 13900, Ask: 14100,
		BidQty: 200, AskQty: 200,
		Settlement: "T1", TradedNotional: 5_000_000,
	}
}

func newTestEngine(t *testing.T, cfg Config, wl *fakeWatchlist, quotes *fakeQuotes, foreign *fakeForeign, audit *fakeAudit, states *fakeStates) *Engine {
	t.Helper()
	gate, err := NewGate("UTC", nil)
	require.NoError(t, err)
	e := New(cfg, gate, wl, quotes, foreign, audit, states, nil, nil, nil, testLogger())
	e.now = func() time.Time {
		return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	}
	return e
}

func TestTickSessionClosed(t *testing.T) {
	gate, err := NewGate("UTC", []string{"09:00-10:00"})
	require.NoError(t, err)

	audit := &fakeAudit{}
	e := New(testConfig(), gate, &fakeWatchlist{}, &fakeQuotes{}, &fakeForeign{}, audit, &fakeStates{}, nil, nil, nil, testLogger())
	e.now = func() time.Time {
		return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	}

	report, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipSessionClosed, report.SkipReason)
	assert.Empty(t, audit.rows)
}

func TestTickReferenceUnavailable(t *testing.T) {
	quotes := &fakeQuotes{
		quotes: map[string]domain.Quote{},
		errs:   map[string]error{"AL30": domain.ErrQuoteUnavailable},
	}
	audit := &fakeAudit{}
	states := &fakeStates{}
	e := newTestEngine(t, testConfig(), &fakeWatchlist{instruments: []domain.Instrument{vistInstrument()}}, quotes, &fakeForeign{}, audit, states)

	report, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipReferenceRate, report.SkipReason)
	assert.Empty(t, audit.rows)
	assert.Empty(t, states.puts)
}

func TestTickEmitsAlert(t *testing.T) {
	quotes := &fakeQuotes{quotes: referenceQuotes()}
	quotes.quotes["VIST"] = vistQuote()
	foreign := &fakeForeign{snaps: map[string]domain.ForeignSnapshot{
		"VIST": {Ticker: "VIST", Price: 45, ChangePct: 0.1},
	}}
	audit := &fakeAudit{}
	states := &fakeStates{}
	e := newTestEngine(t, testConfig(), &fakeWatchlist{instruments: []domain.Instrument{vistInstrument()}}, quotes, foreign, audit, states)

	report, err := e.Tick(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.SkipReason)
	assert.InDelta(t, 1400, report.ReferenceRate, 1e-9)
	assert.Equal(t, 1, report.Evaluated)
	require.Len(t, report.Alerts, 1)

	alert := report.Alerts[0]
	assert.Equal(t, "VIST", alert.Ticker)
	assert.Equal(t, domain.DirectionBuyLocal, alert.Direction)
	assert.Equal(t, ReasonFirstAlert, alert.Reason)
	assert.NotEmpty(t, alert.ID)
	assert.Greater(t, alert.NetEdge, 0.0)
	assert.Less(t, alert.DeviationPct, -0.6)

	require.Len(t, audit.rows, 1)
	row := audit.rows[0]
	assert.Equal(t, report.TickID, row.TickID)
	assert.True(t, row.Alerted)
	assert.Equal(t, domain.DirectionBuyLocal, row.AlertDirection)
	assert.False(t, row.Unstable)

	require.Len(t, states.puts, 1)
	assert.Equal(t, "VIST", states.puts[0].Ticker)
	assert.Equal(t, domain.DirectionBuyLocal, states.puts[0].Direction)
}

func TestTickDeterministicForFixedSnapshot(t *testing.T) {
	// Two independent ticks over the same frozen quotes must derive the
	// same evaluation. Only the generated ids may differ between runs.
	runOnce := func() domain.Evaluation {
		quotes := &fakeQuotes{quotes: referenceQuotes()}
		quotes.quotes["VIST"] = vistQuote()
		foreign := &fakeForeign{snaps: map[string]domain.ForeignSnapshot{
			"VIST": {Ticker: "VIST", Price: 45, ChangePct: 0.1},
		}}
		audit := &fakeAudit{}
		e := newTestEngine(t, testConfig(), &fakeWatchlist{instruments: []domain.Instrument{vistInstrument()}}, quotes, foreign, audit, &fakeStates{})

		_, err := e.Tick(context.Background())
		require.NoError(t, err)
		require.Len(t, audit.rows, 1)

		row := audit.rows[0]
		row.ID, row.TickID = "", ""
		return row
	}

	assert.Equal(t, runOnce(), runOnce())
}

func TestTickFlooredNetEdgeNotAlerted(t *testing.T) {
	// Deviation clears the minimum but the round-trip fee eats the gross
	// edge, so net floors at zero. The net-edge gate is strict and must
	// reject this even at a configured minimum of zero.
	quotes := &fakeQuotes{quotes: referenceQuotes()}
	quotes.quotes["VIST"] = domain.Quote{
		Ticker: "VIST", Bid: 20700, Ask: 20850,
		BidQty: 200, AskQty: 200,
		Settlement: "T1", TradedNotional: 5_000_000,
	}
	foreign := &fakeForeign{snaps: map[string]domain.ForeignSnapshot{
		"VIST": {Ticker: "VIST", Price: 45, ChangePct: 0.1},
	}}
	audit := &fakeAudit{}
	states := &fakeStates{}
	cfg := testConfig()
	cfg.MinNetEdge = 0
	e := newTestEngine(t, cfg, &fakeWatchlist{instruments: []domain.Instrument{vistInstrument()}}, quotes, foreign, audit, states)

	report, err := e.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Evaluated)
	assert.Empty(t, report.Alerts)
	require.Len(t, audit.rows, 1)
	row := audit.rows[0]
	assert.False(t, row.Alerted)
	assert.Less(t, row.DeviationBuyPct, -0.6)
	assert.Zero(t, row.EdgeBuyNet)
	assert.Empty(t, states.puts)
}

func TestTickDedupSuppresses(t *testing.T) {
	quotes := &fakeQuotes{quotes: referenceQuotes()}
	quotes.quotes["VIST"] = vistQuote()
	foreign := &fakeForeign{snaps: map[string]domain.ForeignSnapshot{
		"VIST": {Ticker: "VIST", Price: 45, ChangePct: 0.1},
	}}
	audit := &fakeAudit{}
	// A recent alert in the same direction at a better edge than this tick
	// can produce.
	states := &fakeStates{states: map[string]domain.AlertState{
		"VIST": {
			Ticker:    "VIST",
			Direction: domain.DirectionBuyLocal,
			NetEdge:   100,
			AlertedAt: time.Date(2026, 3, 10, 14, 55, 0, 0, time.UTC),
		},
	}}
	e := newTestEngine(t, testConfig(), &fakeWatchlist{instruments: []domain.Instrument{vistInstrument()}}, quotes, foreign, audit, states)

	report, err := e.Tick(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Alerts)
	assert.Empty(t, states.puts)
	// The evaluation is still recorded, just not alerted.
	require.Len(t, audit.rows, 1)
	assert.False(t, audit.rows[0].Alerted)
}

func TestTickUnstableExcluded(t *testing.T) {
	quotes := &fakeQuotes{quotes: referenceQuotes()}
	quotes.quotes["VIST"] = vistQuote()
	foreign := &fakeForeign{snaps: map[string]domain.ForeignSnapshot{
		"VIST": {Ticker: "VIST", Price: 45, ChangePct: 0.9},
	}}
	audit := &fakeAudit{}
	states := &fakeStates{}
	e := newTestEngine(t, testConfig(), &fakeWatchlist{instruments: []domain.Instrument{vistInstrument()}}, quotes, foreign, audit, states)

	report, err := e.Tick(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Alerts)
	require.Len(t, audit.rows, 1)
	assert.True(t, audit.rows[0].Unstable)
	assert.False(t, audit.rows[0].Alerted)
}

func TestTickUnstableExcludedFromAudit(t *testing.T) {
	cfg := testConfig()
	cfg.Stability.ExcludeAudit = true

	quotes := &fakeQuotes{quotes: referenceQuotes()}
	quotes.quotes["VIST"] = vistQuote()
	foreign := &fakeForeign{snaps: map[string]domain.ForeignSnapshot{
		"VIST": {Ticker: "VIST", Price: 45, ChangePct: 0.9},
	}}
	audit := &fakeAudit{}
	e := newTestEngine(t, cfg, &fakeWatchlist{instruments: []domain.Instrument{vistInstrument()}}, quotes, foreign, audit, &fakeStates{})

	report, err := e.Tick(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Evaluated)
	assert.Empty(t, audit.rows)
}

func TestTickSettlementMismatchSkipsInstrument(t *testing.T) {
	quotes := &fakeQuotes{quotes: referenceQuotes()}
	q := vistQuote()
	q.Settlement = "CI"
	quotes.quotes["VIST"] = q
	foreign := &fakeForeign{snaps: map[string]domain.ForeignSnapshot{
		"VIST": {Ticker: "VIST", Price: 45},
	}}
	audit := &fakeAudit{}
	e := newTestEngine(t, testConfig(), &fakeWatchlist{instruments: []domain.Instrument{vistInstrument()}}, quotes, foreign, audit, &fakeStates{})

	report, err := e.Tick(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Evaluated)
	assert.Empty(t, report.Alerts)
	assert.Empty(t, audit.rows)
}

func TestTickThinSessionSkipsInstrument(t *testing.T) {
	cfg := testConfig()
	cfg.MinTradedNotional = 10_000_000

	quotes := &fakeQuotes{quotes: referenceQuotes()}
	quotes.quotes["VIST"] = vistQuote()
	foreign := &fakeForeign{snaps: map[string]domain.ForeignSnapshot{
		"VIST": {Ticker: "VIST", Price: 45},
	}}
	audit := &fakeAudit{}
	e := newTestEngine(t, cfg, &fakeWatchlist{instruments: []domain.Instrument{vistInstrument()}}, quotes, foreign, audit, &fakeStates{})

	report, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Evaluated)
	assert.Empty(t, audit.rows)
}

func TestFormatAlerts(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 4, 0, 0, time.UTC)
	alerts := []domain.Alert{
		{
			ID:     "a1",
			Reason: ReasonFirstAlert,
			Opportunity: domain.Opportunity{
				Ticker:        "VIST",
				Direction:     domain.DirectionBuyLocal,
				ImpliedRate:   940,
				ReferenceRate: 1400,
				DeviationPct:  -32.9,
				Fee:           0.10,
				NetEdge:       4.83,
				LotsNeeded:    34,
				Tier:          domain.TierCritical,
				DollarEdgeNet: 0.42,
			},
		},
	}

	got := FormatAlerts(1400, alerts, now)
	assert.Contains(t, got, "FX ref 1400 | 15:04")
	assert.Contains(t, got, "VIST BUY local [critical]")
	assert.Contains(t, got, "impl 940 vs ref 1400 (-32.9%)")
	assert.Contains(t, got, "net 4.83/unit (fee 0.10) lots 34 | first_alert")
	assert.Contains(t, got, "vs D listing: +0.42/unit net")
}
