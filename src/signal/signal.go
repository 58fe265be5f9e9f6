package signal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"papertrader/src/model"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrConfidenceRange is returned when a provider reports confidence outside 0..10.
var ErrConfidenceRange = errors.New("confidence out of range")

type Action string

const (
	ActionOpen Action = "OPEN"
	ActionSkip Action = "SKIP"
)

// Signal is a proposed entry for one symbol. Levels are only meaningful when
// Action is OPEN. Confidence is on a 0..10 scale.
type Signal struct {
	Action     Action               `json:"action"`
	Direction  model.OrderDirection `json:"direction,omitempty"`
	LimitPrice decimal.Decimal      `json:"limit_price"`
	TP1        decimal.Decimal      `json:"tp1"`
	TP2        decimal.Decimal      `json:"tp2"`
	TP3        decimal.Decimal      `json:"tp3"`
	SL         decimal.Decimal      `json:"sl"`
	Confidence float64              `json:"confidence"`
	Reason     string               `json:"reason"`
}

func Skip(reason string) Signal {
	return Signal{Action: ActionSkip, Reason: reason}
}

// Actionable reports whether the signal asks for an order with a usable direction.
func (s Signal) Actionable() bool {
	return s.Action == ActionOpen && s.Direction.Valid()
}

// MarketContext is what a provider sees about one symbol and the account.
type MarketContext struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Balance       decimal.Decimal `json:"balance"`
	Available     decimal.Decimal `json:"available"`
	OpenPositions int             `json:"open_positions"`
	PendingOrders int             `json:"pending_orders"`
	Candles       []model.Candle  `json:"candles,omitempty"`
}

type Provider interface {
	Propose(ctx context.Context, symbol string, mc MarketContext) (Signal, error)
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg Config, logger *logrus.Entry) (Provider, error) {
	switch cfg.Provider {
	case ProviderRule, "":
		return NewRuleProvider(cfg), nil
	case ProviderHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("SIGNAL_URL is required for the %s provider", ProviderHTTP)
		}
		return NewHTTPProvider(cfg.URL, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown signal provider %q", cfg.Provider)
	}
}

// normalizeDirection accepts the order directions as well as plain
// LONG/SHORT or BUY/SELL wording.
func normalizeDirection(s string) model.OrderDirection {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(model.DirectionBuyLimit), "LONG", "BUY":
		return model.DirectionBuyLimit
	case string(model.DirectionSellLimit), "SHORT", "SELL":
		return model.DirectionSellLimit
	default:
		return model.OrderDirection(s)
	}
}
