package signal

import (
	"context"
	"fmt"
	"math"

	"papertrader/src/model"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	tp1R = decimal.NewFromInt(2)
	tp2R = decimal.NewFromInt(3)
	tp3R = decimal.NewFromInt(4)
)

// RuleProvider proposes pullback entries from recent candle structure.
//
// Direction follows the majority of bullish or bearish candles in the
// lookback window. The limit sits PullbackPct away from the current price,
// the stop at the window's average low (long) or high (short), pushed out to
// at least MinRiskPct. Take-profits are placed at 2R, 3R and 4R.
type RuleProvider struct {
	lookback int
	pullback decimal.Decimal
	minRisk  decimal.Decimal
}

func NewRuleProvider(cfg Config) *RuleProvider {
	pullback := cfg.PullbackPct
	if pullback <= 0 {
		pullback = 0.5
	}
	minRisk := cfg.MinRiskPct
	if minRisk <= 0 {
		minRisk = 1
	}
	return &RuleProvider{
		lookback: cfg.Lookback,
		pullback: decimal.NewFromFloat(pullback),
		minRisk:  decimal.NewFromFloat(minRisk),
	}
}

func (r *RuleProvider) Propose(ctx context.Context, symbol string, mc MarketContext) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return Signal{}, err
	}
	if !mc.Price.IsPositive() {
		return Skip("no price available"), nil
	}
	if len(mc.Candles) < 2 {
		return Skip(fmt.Sprintf("not enough candles for %s", symbol)), nil
	}

	w := window(mc.Candles, r.lookback)
	bull, bear := bias(w)
	if bull == bear {
		return Signal{Action: ActionSkip, Confidence: 0, Reason: fmt.Sprintf("no directional bias (%d bullish, %d bearish)", bull, bear)}, nil
	}

	long := bull > bear
	last := mc.Candles[len(mc.Candles)-1]
	confidence := r.confidence(bull, bear, len(w), (long && last.Bullish()) || (!long && last.Bearish()))

	if long {
		return r.long(mc.Price, w, confidence, bull, bear), nil
	}
	return r.short(mc.Price, w, confidence, bull, bear), nil
}

// confidence maps the candle imbalance to 4..9 and adds one when the latest
// candle agrees with the majority.
func (r *RuleProvider) confidence(bull, bear, n int, lastAgrees bool) float64 {
	imbalance := math.Abs(float64(bull-bear)) / float64(n)
	c := 4 + 5*imbalance
	if lastAgrees {
		c++
	}
	if c > 10 {
		c = 10
	}
	return math.Round(c*10) / 10
}

func (r *RuleProvider) long(price decimal.Decimal, w []model.Candle, confidence float64, bull, bear int) Signal {
	limit := price.Mul(hundred.Sub(r.pullback)).Div(hundred).Round(8)
	sl := AvgLow(w)
	if floor := limit.Mul(hundred.Sub(r.minRisk)).Div(hundred); sl.GreaterThan(floor) {
		sl = floor
	}
	sl = sl.Round(8)
	risk := limit.Sub(sl)
	if !risk.IsPositive() || !sl.IsPositive() {
		return Skip("stop distance not computable")
	}

	return Signal{
		Action:     ActionOpen,
		Direction:  model.DirectionBuyLimit,
		LimitPrice: limit,
		TP1:        limit.Add(risk.Mul(tp1R)).Round(8),
		TP2:        limit.Add(risk.Mul(tp2R)).Round(8),
		TP3:        limit.Add(risk.Mul(tp3R)).Round(8),
		SL:         sl,
		Confidence: confidence,
		Reason:     fmt.Sprintf("bullish majority %d/%d, pullback entry", bull, bull+bear),
	}
}

func (r *RuleProvider) short(price decimal.Decimal, w []model.Candle, confidence float64, bull, bear int) Signal {
	limit := price.Mul(hundred.Add(r.pullback)).Div(hundred).Round(8)
	sl := AvgHigh(w)
	if ceil := limit.Mul(hundred.Add(r.minRisk)).Div(hundred); sl.LessThan(ceil) {
		sl = ceil
	}
	sl = sl.Round(8)
	risk := sl.Sub(limit)
	tp3 := limit.Sub(risk.Mul(tp3R)).Round(8)
	if !risk.IsPositive() || !tp3.IsPositive() {
		return Skip("stop too wide for a short entry")
	}

	return Signal{
		Action:     ActionOpen,
		Direction:  model.DirectionSellLimit,
		LimitPrice: limit,
		TP1:        limit.Sub(risk.Mul(tp1R)).Round(8),
		TP2:        limit.Sub(risk.Mul(tp2R)).Round(8),
		TP3:        tp3,
		SL:         sl,
		Confidence: confidence,
		Reason:     fmt.Sprintf("bearish majority %d/%d, rally entry", bear, bull+bear),
	}
}
