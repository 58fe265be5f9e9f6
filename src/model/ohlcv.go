package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar handed to signal providers as market context.
type Candle struct {
	Symbol   string          `json:"symbol"`
	Datetime time.Time       `json:"datetime"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

func (c Candle) Bullish() bool { return c.Close.GreaterThan(c.Open) }
func (c Candle) Bearish() bool { return c.Close.LessThan(c.Open) }
