package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// AlertsChannel is the bus channel emitted alerts are published on.
const AlertsChannel = "alerts"

// StabilityConfig controls the fast-market filter.
type StabilityConfig struct {
	// MaxChangePct excludes an instrument from alerting when the foreign
	// underlying moved more than this over the lookback window.
	MaxChangePct float64
	// ExcludeAudit also drops the audit row for unstable instruments. Off by
	// default: history is usually worth keeping even when alerting is not.
	ExcludeAudit bool
}

// ReferenceConfig names the two instruments whose quotes yield the reference
// FX rate: a bond traded in local currency and its USD-settled twin.
type ReferenceConfig struct {
	LocalLeg  string
	DollarLeg string
}

// Config is the fully resolved engine configuration.
type Config struct {
	MinDeviationPct float64
	MinNetEdge      float64
	FeePctPerLeg    float64
	// SettlementTerm is the only settlement code considered comparable; any
	// leg quoted on a different term is ignored for the tick.
	SettlementTerm string
	// MinTradedNotional drops illiquid listings before any math is done.
	MinTradedNotional float64
	MaxConcurrency    int
	FetchTimeout      time.Duration

	Reference  ReferenceConfig
	Sizing     SizingConfig
	Classifier ClassifierConfig
	Dedup      DedupConfig
	Stability  StabilityConfig
}

// AlertNotifier is the narrow slice of the notification system the engine
// needs. Delivery failures are logged, never retried within the tick, and
// never block state commitment.
type AlertNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Engine composes the signal pipeline across the watch-set, once per tick.
// It holds no timers of its own; ticks are driven by the caller.
type Engine struct {
	cfg       Config
	gate      *Gate
	watchlist domain.WatchlistStore
	quotes    domain.QuoteSource
	foreign   domain.ForeignSource
	audit     domain.AuditStore
	states    domain.AlertStateStore
	locks     domain.LockManager // optional
	bus       domain.AlertBus    // optional
	notifier  AlertNotifier      // optional
	logger    *slog.Logger

	now    func() time.Time
	tickMu sync.Mutex
}

// New creates an Engine. locks, bus, and notifier may be nil; the engine
// degrades to local-only operation without them.
func New(
	cfg Config,
	gate *Gate,
	watchlist domain.WatchlistStore,
	quotes domain.QuoteSource,
	foreign domain.ForeignSource,
	audit domain.AuditStore,
	states domain.AlertStateStore,
	locks domain.LockManager,
	bus domain.AlertBus,
	notifier AlertNotifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		gate:      gate,
		watchlist: watchlist,
		quotes:    quotes,
		foreign:   foreign,
		audit:     audit,
		states:    states,
		locks:     locks,
		bus:       bus,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "engine")),
		now:       time.Now,
	}
}

// Tick skip reasons.
const (
	SkipSessionClosed  = "session_closed"
	SkipTickInProgress = "tick_in_progress"
	SkipReferenceRate  = "reference_rate_unavailable"
)

// TickReport summarizes one engine tick.
type TickReport struct {
	TickID        string
	SkipReason    string
	ReferenceRate float64
	Evaluated     int
	Alerts        []domain.Alert
}

// Tick runs one full evaluation pass: session gate, reference rate, bounded
// parallel fan-out over the watch-set, audit, dedup, state commit, and
// notification. Per-instrument problems degrade to skipped instruments;
// a missing reference rate skips the whole tick with no side effects.
func (e *Engine) Tick(ctx context.Context) (TickReport, error) {
	if !e.tickMu.TryLock() {
		return TickReport{SkipReason: SkipTickInProgress}, nil
	}
	defer e.tickMu.Unlock()

	now := e.now()
	if !e.gate.Open(now) {
		e.logger.DebugContext(ctx, "tick outside session windows", slog.Time("at", now))
		return TickReport{SkipReason: SkipSessionClosed}, nil
	}

	report := TickReport{TickID: uuid.New().String()}

	ref, err := e.referenceRate(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "reference rate unavailable, skipping tick",
			slog.String("tick_id", report.TickID),
			slog.String("error", err.Error()),
		)
		report.SkipReason = SkipReferenceRate
		return report, nil
	}
	report.ReferenceRate = ref

	instruments, err := e.watchlist.List(ctx)
	if err != nil {
		return report, fmt.Errorf("engine: load watchlist: %w", err)
	}
	states, err := e.states.All(ctx)
	if err != nil {
		return report, fmt.Errorf("engine: load alert states: %w", err)
	}

	var (
		mu     sync.Mutex
		alerts []domain.Alert
	)

	g, gctx := errgroup.WithContext(ctx)
	limit := e.cfg.MaxConcurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for _, inst := range instruments {
		if !inst.Valid() || inst.Kind != domain.KindCEDEAR {
			continue
		}
		inst := inst
		g.Go(func() error {
			ev, alert := e.evaluate(gctx, inst, ref, states, now, report.TickID)
			if ev != nil {
				if err := e.audit.Append(gctx, *ev); err != nil {
					e.logger.ErrorContext(gctx, "audit append failed",
						slog.String("ticker", inst.Ticker),
						slog.String("error", err.Error()),
					)
				}
				mu.Lock()
				report.Evaluated++
				mu.Unlock()
			}
			if alert != nil {
				mu.Lock()
				alerts = append(alerts, *alert)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("engine: fan-out: %w", err)
	}

	report.Alerts = alerts
	if len(alerts) == 0 {
		e.logger.InfoContext(ctx, "tick complete, no alerts",
			slog.String("tick_id", report.TickID),
			slog.Int("evaluated", report.Evaluated),
			slog.Float64("reference_rate", ref),
		)
		return report, nil
	}

	e.commitStates(ctx, alerts, now)
	e.publish(ctx, alerts)
	e.notify(ctx, ref, alerts, now)

	e.logger.InfoContext(ctx, "tick complete",
		slog.String("tick_id", report.TickID),
		slog.Int("evaluated", report.Evaluated),
		slog.Int("alerts", len(alerts)),
		slog.Float64("reference_rate", ref),
	)
	return report, nil
}

// referenceRate derives the FX reference from the configured bond pair. Both
// legs must be quoted on the engine's settlement term; otherwise the rate is
// invalid for this tick and no stale value is substituted.
func (e *Engine) referenceRate(ctx context.Context) (float64, error) {
	local, err := e.fetchQuote(ctx, e.cfg.Reference.LocalLeg)
	if err != nil {
		return 0, fmt.Errorf("local leg %s: %w", e.cfg.Reference.LocalLeg, err)
	}
	dollar, err := e.fetchQuote(ctx, e.cfg.Reference.DollarLeg)
	if err != nil {
		return 0, fmt.Errorf("dollar leg %s: %w", e.cfg.Reference.DollarLeg, err)
	}
	if local.Settlement != e.cfg.SettlementTerm || dollar.Settlement != e.cfg.SettlementTerm {
		return 0, fmt.Errorf("settlement mismatch (%q/%q, want %q): %w",
			local.Settlement, dollar.Settlement, e.cfg.SettlementTerm, domain.ErrQuoteUnavailable)
	}
	localMark, ok := local.Mark()
	if !ok {
		return 0, fmt.Errorf("local leg unpriced: %w", domain.ErrQuoteUnavailable)
	}
	dollarMark, ok := dollar.Mark()
	if !ok || dollarMark <= 0 {
		return 0, fmt.Errorf("dollar leg unpriced: %w", domain.ErrQuoteUnavailable)
	}
	return localMark / dollarMark, nil
}

// evaluate runs the full per-instrument pipeline for one tick. It returns a
// non-nil Evaluation whenever the instrument produced a usable quote pair
// (subject to the stability audit knob), and a non-nil Alert only when every
// filter and the dedup decision passed.
func (e *Engine) evaluate(
	ctx context.Context,
	inst domain.Instrument,
	ref float64,
	states map[string]domain.AlertState,
	now time.Time,
	tickID string,
) (*domain.Evaluation, *domain.Alert) {
	local, err := e.fetchQuote(ctx, inst.Ticker)
	if err != nil {
		e.skip(ctx, inst.Ticker, "local quote", err)
		return nil, nil
	}
	if local.Settlement != e.cfg.SettlementTerm {
		e.skip(ctx, inst.Ticker, "settlement term", nil)
		return nil, nil
	}
	if !local.HasBook() {
		e.skip(ctx, inst.Ticker, "no book", nil)
		return nil, nil
	}
	if e.cfg.MinTradedNotional > 0 && local.TradedNotional > 0 &&
		local.TradedNotional < e.cfg.MinTradedNotional {
		e.skip(ctx, inst.Ticker, "thin session", nil)
		return nil, nil
	}

	foreign, err := e.fetchForeign(ctx, inst.Foreign())
	if err != nil || !foreign.Valid() {
		e.skip(ctx, inst.Ticker, "foreign quote", err)
		return nil, nil
	}

	// Optional paired USD listing; used only when comparable.
	var dollar *domain.Quote
	if inst.DollarTicker != "" {
		if q, err := e.fetchQuote(ctx, inst.DollarTicker); err == nil &&
			q.Settlement == e.cfg.SettlementTerm && q.HasBook() {
			dollar = &q
		}
	}

	impliedBuy, err := ImpliedRate(local.Ask, foreign.Price, inst.Ratio)
	if err != nil {
		e.skip(ctx, inst.Ticker, "implied rate", err)
		return nil, nil
	}
	impliedSell, err := ImpliedRate(local.Bid, foreign.Price, inst.Ratio)
	if err != nil {
		e.skip(ctx, inst.Ticker, "implied rate", err)
		return nil, nil
	}
	devBuy, err := DeviationPct(impliedBuy, ref)
	if err != nil {
		e.skip(ctx, inst.Ticker, "deviation", err)
		return nil, nil
	}
	devSell, err := DeviationPct(impliedSell, ref)
	if err != nil {
		e.skip(ctx, inst.Ticker, "deviation", err)
		return nil, nil
	}
	edges, err := ComputeEdges(local.Bid, local.Ask, foreign.Price, inst.Ratio, ref, e.cfg.FeePctPerLeg)
	if err != nil {
		e.skip(ctx, inst.Ticker, "edges", err)
		return nil, nil
	}

	ev := &domain.Evaluation{
		ID:               uuid.New().String(),
		TickID:           tickID,
		Ticker:           inst.Ticker,
		Ratio:            inst.Ratio,
		ForeignPrice:     foreign.Price,
		ForeignChangePct: foreign.ChangePct,
		LocalBid:         local.Bid,
		LocalAsk:         local.Ask,
		LocalBidQty:      local.BidQty,
		LocalAskQty:      local.AskQty,
		Settlement:       local.Settlement,
		TradedNotional:   local.TradedNotional,
		ReferenceRate:    ref,
		ImpliedBuy:       impliedBuy,
		ImpliedSell:      impliedSell,
		DeviationBuyPct:  devBuy,
		DeviationSellPct: devSell,
		EdgeBuyGross:     edges.BuyGross,
		EdgeSellGross:    edges.SellGross,
		FeeBuy:           edges.BuyFee,
		FeeSell:          edges.SellFee,
		EdgeBuyNet:       edges.BuyNet,
		EdgeSellNet:      edges.SellNet,
		Source:           local.Source,
		CreatedAt:        now,
	}

	var dollarEdge float64
	if dollar != nil {
		ev.DollarBid = dollar.Bid
		ev.DollarAsk = dollar.Ask
		localMark, _ := local.Mark()
		dollarMark, _ := dollar.Mark()
		if de, err := DollarListingEdge(localMark, dollarMark, ref, e.cfg.FeePctPerLeg); err == nil {
			dollarEdge = de
			ev.DollarEdgeNet = de
		}
	}

	if Unstable(foreign.ChangePct, e.cfg.Stability.MaxChangePct) {
		ev.Unstable = true
		if e.cfg.Stability.ExcludeAudit {
			return nil, nil
		}
		return ev, nil
	}

	opp, ok := e.pickDirection(inst, impliedBuy, impliedSell, devBuy, devSell, edges, ref, dollarEdge, now)
	if !ok {
		return ev, nil
	}

	entry := Leg{Bid: local.Bid, Ask: local.Ask, BidQty: local.BidQty, AskQty: local.AskQty}
	var exit *Leg
	exitPrice := edges.UnderlyingUSD
	if dollar != nil {
		exit = &Leg{Bid: dollar.Bid, Ask: dollar.Ask, BidQty: dollar.BidQty, AskQty: dollar.AskQty}
		if opp.Direction == domain.DirectionBuyLocal {
			exitPrice = dollar.Bid
		} else {
			exitPrice = dollar.Ask
		}
	}
	lots, ok := CheckLiquidity(e.cfg.Sizing, opp.Direction, entry, exit, exitPrice)
	if !ok {
		return ev, nil
	}
	opp.LotsNeeded = lots
	opp.Tier = Classify(e.cfg.Classifier, opp.NetEdge, opp.DeviationPct, lots, entry, exit)

	var prior *domain.AlertState
	if st, found := states[inst.Ticker]; found {
		prior = &st
	}
	dec := Decide(e.cfg.Dedup, prior, opp, now)
	if !dec.Emit {
		return ev, nil
	}

	ev.Alerted = true
	ev.AlertDirection = opp.Direction
	ev.Tier = opp.Tier
	return ev, &domain.Alert{
		ID:          uuid.New().String(),
		Reason:      dec.Reason,
		Opportunity: opp,
	}
}

// pickDirection qualifies both directions against the deviation and net-edge
// minimums and keeps the better one. Deviation is direction-signed: buying
// locally is attractive when the implied rate sits below the reference,
// selling when it sits above.
func (e *Engine) pickDirection(
	inst domain.Instrument,
	impliedBuy, impliedSell, devBuy, devSell float64,
	edges Edges,
	ref, dollarEdge float64,
	now time.Time,
) (domain.Opportunity, bool) {
	// Strictly greater: net edges are floored at zero, so at min_net_edge 0
	// a >= gate would wave through candidates whose fee eats the gross.
	buyOK := devBuy <= -e.cfg.MinDeviationPct && edges.BuyNet > e.cfg.MinNetEdge
	sellOK := devSell >= e.cfg.MinDeviationPct && edges.SellNet > e.cfg.MinNetEdge

	if !buyOK && !sellOK {
		return domain.Opportunity{}, false
	}

	opp := domain.Opportunity{
		Ticker:        inst.Ticker,
		ReferenceRate: ref,
		DollarEdgeNet: dollarEdge,
		DetectedAt:    now,
	}
	if buyOK && (!sellOK || edges.BuyNet >= edges.SellNet) {
		opp.Direction = domain.DirectionBuyLocal
		opp.ImpliedRate = impliedBuy
		opp.DeviationPct = devBuy
		opp.GrossEdge = edges.BuyGross
		opp.Fee = edges.BuyFee
		opp.NetEdge = edges.BuyNet
	} else {
		opp.Direction = domain.DirectionSellLocal
		opp.ImpliedRate = impliedSell
		opp.DeviationPct = devSell
		opp.GrossEdge = edges.SellGross
		opp.Fee = edges.SellFee
		opp.NetEdge = edges.SellNet
	}
	return opp, true
}

// commitStates overwrites the per-instrument alert state for every emitted
// alert, holding the per-instrument lock so an overlapping tick cannot
// interleave its own read-then-write.
func (e *Engine) commitStates(ctx context.Context, alerts []domain.Alert, now time.Time) {
	for _, a := range alerts {
		st := domain.AlertState{
			Ticker:    a.Ticker,
			Direction: a.Direction,
			NetEdge:   a.NetEdge,
			AlertedAt: now,
		}
		if e.locks != nil {
			unlock, err := e.locks.Acquire(ctx, "alertstate:"+a.Ticker, 10*time.Second)
			if err != nil {
				if errors.Is(err, domain.ErrLockHeld) {
					e.logger.WarnContext(ctx, "alert state locked by concurrent tick, skipping write",
						slog.String("ticker", a.Ticker),
					)
					continue
				}
				e.logger.ErrorContext(ctx, "alert state lock failed",
					slog.String("ticker", a.Ticker),
					slog.String("error", err.Error()),
				)
				continue
			}
			if err := e.states.Put(ctx, st); err != nil {
				e.logger.ErrorContext(ctx, "alert state write failed",
					slog.String("ticker", a.Ticker),
					slog.String("error", err.Error()),
				)
			}
			unlock()
			continue
		}
		if err := e.states.Put(ctx, st); err != nil {
			e.logger.ErrorContext(ctx, "alert state write failed",
				slog.String("ticker", a.Ticker),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (e *Engine) publish(ctx context.Context, alerts []domain.Alert) {
	if e.bus == nil {
		return
	}
	for _, a := range alerts {
		payload, err := json.Marshal(a)
		if err != nil {
			continue
		}
		if err := e.bus.Publish(ctx, AlertsChannel, payload); err != nil {
			e.logger.WarnContext(ctx, "alert publish failed",
				slog.String("ticker", a.Ticker),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (e *Engine) notify(ctx context.Context, ref float64, alerts []domain.Alert, now time.Time) {
	if e.notifier == nil {
		return
	}
	title := fmt.Sprintf("CEDEAR signals (%d)", len(alerts))
	if err := e.notifier.Notify(ctx, "alert", title, FormatAlerts(ref, alerts, now)); err != nil {
		e.logger.ErrorContext(ctx, "notification failed", slog.String("error", err.Error()))
	}
}

// FormatAlerts renders the single per-tick notification payload.
func FormatAlerts(ref float64, alerts []domain.Alert, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FX ref %.0f | %s\n", ref, now.Format("15:04"))
	for _, a := range alerts {
		side := "BUY local"
		if a.Direction == domain.DirectionSellLocal {
			side = "SELL local"
		}
		fmt.Fprintf(&b, "\n%s %s [%s]\n", a.Ticker, side, a.Tier)
		fmt.Fprintf(&b, "impl %.0f vs ref %.0f (%+.1f%%)\n", a.ImpliedRate, a.ReferenceRate, a.DeviationPct)
		fmt.Fprintf(&b, "net %.2f/unit (fee %.2f) lots %d | %s\n", a.NetEdge, a.Fee, a.LotsNeeded, a.Reason)
		if a.DollarEdgeNet != 0 {
			fmt.Fprintf(&b, "vs D listing: %+.2f/unit net\n", a.DollarEdgeNet)
		}
	}
	return b.String()
}

func (e *Engine) fetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}
	return e.quotes.GetQuote(ctx, symbol)
}

func (e *Engine) fetchForeign(ctx context.Context, symbol string) (domain.ForeignSnapshot, error) {
	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}
	return e.foreign.Snapshot(ctx, symbol)
}

func (e *Engine) skip(ctx context.Context, ticker, stage string, err error) {
	attrs := []any{
		slog.String("ticker", ticker),
		slog.String("stage", stage),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	e.logger.DebugContext(ctx, "instrument skipped", attrs...)
}
