package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"papertrader/src/engine"
	"papertrader/src/market"
	"papertrader/src/metrics"
	"papertrader/src/model"
	"papertrader/src/news"
	"papertrader/src/risk"
	"papertrader/src/signal"
	"papertrader/src/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type candleSource interface {
	Candles(ctx context.Context, symbol string) ([]model.Candle, error)
}

type newsGate interface {
	Check(ctx context.Context) news.Decision
}

type journalWriter interface {
	SaveClosed(ctx context.Context, userID string, closed []model.Position) error
}

type exceptionSink interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Cycle summarizes one reconciliation run.
type Cycle struct {
	Lines   []string
	Filled  int
	Expired int
	Closed  int
	Placed  int
}

func (c *Cycle) logf(format string, args ...interface{}) {
	c.Lines = append(c.Lines, fmt.Sprintf(format, args...))
}

// Reconciler runs the per-user reconciliation steps: price lookup, fills and
// expiries, marking positions, and placing new orders from signals.
type Reconciler struct {
	cfg      Config
	store    *store.Store
	engine   *engine.Engine
	oracle   market.Oracle
	provider signal.Provider
	candles  candleSource
	gate     newsGate
	journal  journalWriter
	metrics  *metrics.Metrics
	logger   *logrus.Entry

	watchList     []string
	minConfidence float64
	minRewardRisk decimal.Decimal
	riskPercent   decimal.Decimal
}

// Option wires an optional collaborator into the Reconciler.
type Option func(r *Reconciler)

func WithCandles(src candleSource) Option {
	return func(r *Reconciler) { r.candles = src }
}

func WithNewsGate(g newsGate) Option {
	return func(r *Reconciler) { r.gate = g }
}

func WithJournal(j journalWriter) Option {
	return func(r *Reconciler) { r.journal = j }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

func NewReconciler(cfg Config, st *store.Store, eng *engine.Engine, oracle market.Oracle, provider signal.Provider, logger *logrus.Entry, opts ...Option) *Reconciler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	watch := make([]string, 0, len(cfg.WatchList))
	seen := make(map[string]bool, len(cfg.WatchList))
	for _, s := range cfg.WatchList {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		watch = append(watch, s)
	}

	r := &Reconciler{
		cfg:           cfg,
		store:         st,
		engine:        eng,
		oracle:        oracle,
		provider:      provider,
		logger:        logger.WithField("component", "reconciler"),
		watchList:     watch,
		minConfidence: cfg.MinConfidence,
		minRewardRisk: decimal.NewFromFloat(cfg.MinRewardRisk),
		riskPercent:   decimal.NewFromFloat(cfg.RiskPercent),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a full reconciliation tick for userID.
func (r *Reconciler) Run(ctx context.Context, userID string) (Cycle, error) {
	return r.cycle(ctx, userID, true)
}

// Refresh fills, expires and marks against fresh prices without asking for
// new signals. It serializes with Run for the same user.
func (r *Reconciler) Refresh(ctx context.Context, userID string) (Cycle, error) {
	return r.cycle(ctx, userID, false)
}

func (r *Reconciler) cycle(ctx context.Context, userID string, withSignals bool) (Cycle, error) {
	var c Cycle
	err := r.store.Exclusive(userID, func() error {
		snap, err := r.engine.GetPortfolio(userID)
		if err != nil {
			return err
		}

		symbols := snap.Symbols()
		if withSignals {
			symbols = append(symbols, r.watchList...)
		}
		prices := r.lookupPrices(ctx, userID, symbols, &c)

		fills, err := r.engine.CheckAndFillOrders(userID, prices)
		if err != nil {
			return fmt.Errorf("check orders: %w", err)
		}
		for _, o := range fills.Expired {
			c.Expired++
			r.metrics.OrderExpired(o.Symbol)
			c.logf("EXPIRED %s %s @ %s, released %s", o.Direction, o.Symbol, o.LimitPrice, o.Size.StringFixed(2))
		}
		for _, o := range fills.Filled {
			c.Filled++
			r.metrics.OrderFilled(o.Symbol)
			c.logf("FILLED %s %s @ %s, size %s", o.Direction, o.Symbol, o.LimitPrice, o.Size.StringFixed(2))
		}
		if fills.Blocked > 0 {
			c.logf("%d crossed order(s) waiting for a free position slot", fills.Blocked)
		}

		marks, err := r.engine.UpdatePositions(userID, prices)
		if err != nil {
			return fmt.Errorf("update positions: %w", err)
		}
		for _, pos := range marks.Closed {
			c.Closed++
			r.metrics.PositionClosed(string(pos.CloseReason))
			c.logf("CLOSED %s %s by %s @ %s, pnl %s", pos.Side, pos.Symbol, pos.CloseReason, pos.CurrentPrice, pos.Pnl.StringFixed(2))
		}
		r.saveClosed(ctx, userID, marks.Closed)

		if withSignals {
			r.proposeOrders(ctx, userID, prices, &c)
		}
		return nil
	})
	return c, err
}

func (r *Reconciler) lookupPrices(ctx context.Context, userID string, symbols []string, c *Cycle) model.Prices {
	if len(symbols) == 0 {
		return model.Prices{}
	}

	pctx, cancel := context.WithTimeout(ctx, r.cfg.PriceTimeout)
	defer cancel()

	prices, err := r.oracle.LookupPrices(pctx, symbols)
	if err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Warn("price lookup failed")
		c.logf("price lookup failed: %v", err)
	}
	if prices == nil {
		prices = model.Prices{}
	}
	return prices
}

func (r *Reconciler) saveClosed(ctx context.Context, userID string, closed []model.Position) {
	if r.journal == nil || len(closed) == 0 {
		return
	}
	if err := r.journal.SaveClosed(ctx, userID, closed); err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Warn("failed to journal closed trades")
	}
}

func (r *Reconciler) proposeOrders(ctx context.Context, userID string, prices model.Prices, c *Cycle) {
	snap, err := r.engine.GetPortfolio(userID)
	if err != nil {
		c.logf("portfolio unavailable: %v", err)
		return
	}

	pending := len(snap.PendingOrders)
	if pending >= engine.MaxPendingOrders {
		c.logf("pending order capacity reached (%d), no new signals", pending)
		return
	}

	if r.gate != nil {
		decision := r.gate.Check(ctx)
		if !decision.Allowed {
			r.metrics.Signal("news_blocked")
			c.logf("news window active until %s: %s", decision.NextAllowedUTC.Format(time.RFC3339), decision.Reason)
			return
		}
	}

	for _, symbol := range r.watchList {
		if pending >= engine.MaxPendingOrders {
			break
		}
		if ctx.Err() != nil {
			c.logf("cycle cancelled: %v", ctx.Err())
			return
		}
		if snap.Exposed(symbol) {
			continue
		}

		price, ok := prices.Get(symbol)
		if !ok {
			r.metrics.Signal("no_price")
			c.logf("SKIP %s: no price", symbol)
			continue
		}

		sig, err := r.propose(ctx, userID, symbol, price, &snap)
		if err != nil {
			r.metrics.Signal("error")
			r.logger.WithError(err).WithField("symbol", symbol).Warn("signal provider failed")
			c.logf("SKIP %s: signal error: %v", symbol, err)
			continue
		}
		if reason, ok := r.accept(sig); !ok {
			r.metrics.Signal("skipped")
			c.logf("SKIP %s: %s (confidence %.1f)", symbol, reason, sig.Confidence)
			continue
		}

		order, err := r.engine.PlaceLimitOrder(userID, engine.LimitOrderRequest{
			Symbol:        symbol,
			Direction:     sig.Direction,
			ObservedPrice: price,
			LimitPrice:    sig.LimitPrice,
			TP1:           sig.TP1,
			TP2:           sig.TP2,
			TP3:           sig.TP3,
			SL:            sig.SL,
			Confidence:    sig.Confidence,
			Reason:        sig.Reason,
			RiskPercent:   r.riskPercent,
		})
		if err != nil {
			r.metrics.Signal("rejected")
			c.logf("REJECTED %s %s: %v", sig.Direction, symbol, err)
			if errors.Is(err, engine.ErrPendingCapReached) {
				return
			}
			continue
		}

		pending++
		c.Placed++
		r.metrics.Signal("placed")
		r.metrics.OrderPlaced(string(order.Direction))
		c.logf("PLACED %s %s @ %s, confidence %.1f: %s", order.Direction, symbol, order.LimitPrice, order.Confidence, order.Reason)
	}
}

func (r *Reconciler) propose(ctx context.Context, userID, symbol string, price decimal.Decimal, snap *model.Portfolio) (signal.Signal, error) {
	sctx, cancel := context.WithTimeout(ctx, r.cfg.SignalTimeout)
	defer cancel()

	mc := signal.MarketContext{
		Symbol:        symbol,
		Price:         price,
		Balance:       snap.Balance,
		Available:     snap.Available(),
		OpenPositions: len(snap.Positions),
		PendingOrders: len(snap.PendingOrders),
	}

	if r.candles != nil {
		candles, err := r.candles.Candles(sctx, symbol)
		if err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{"user_id": userID, "symbol": symbol}).Warn("candle lookup failed")
		} else {
			mc.Candles = candles
		}
	}

	return r.provider.Propose(sctx, symbol, mc)
}

// accept applies the confidence and reward-to-risk thresholds.
func (r *Reconciler) accept(sig signal.Signal) (string, bool) {
	if !sig.Actionable() {
		if sig.Reason == "" {
			return "no actionable signal", false
		}
		return sig.Reason, false
	}
	if sig.Confidence < r.minConfidence {
		return fmt.Sprintf("confidence below %.1f", r.minConfidence), false
	}
	rr := risk.RewardRisk(sig.LimitPrice, sig.TP1, sig.SL)
	if rr.LessThan(r.minRewardRisk) {
		return fmt.Sprintf("reward/risk %s below %s", rr.StringFixed(2), r.minRewardRisk.String()), false
	}
	return "", true
}
