package signal

import (
	"papertrader/src/model"

	"github.com/shopspring/decimal"
)

func AvgLow(candles []model.Candle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range candles {
		sum = sum.Add(c.Low)
	}
	return sum.Div(decimal.NewFromInt(int64(len(candles))))
}

func AvgHigh(candles []model.Candle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range candles {
		sum = sum.Add(c.High)
	}
	return sum.Div(decimal.NewFromInt(int64(len(candles))))
}

// window returns the last lookback candles, or all of them when fewer exist.
func window(candles []model.Candle, lookback int) []model.Candle {
	if lookback <= 0 {
		lookback = 20
	}
	if lookback > len(candles) {
		lookback = len(candles)
	}
	return candles[len(candles)-lookback:]
}

// bias counts bullish and bearish candles in w.
func bias(w []model.Candle) (bull, bear int) {
	for _, c := range w {
		switch {
		case c.Bullish():
			bull++
		case c.Bearish():
			bear++
		}
	}
	return bull, bear
}
