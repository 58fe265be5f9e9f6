package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderDirection string

const (
	DirectionBuyLimit  OrderDirection = "BUY_LIMIT"
	DirectionSellLimit OrderDirection = "SELL_LIMIT"
)

// Side returns the position side a filled order of this direction opens.
func (d OrderDirection) Side() PositionSide {
	if d == DirectionSellLimit {
		return SideShort
	}
	return SideLong
}

func (d OrderDirection) Valid() bool {
	return d == DirectionBuyLimit || d == DirectionSellLimit
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// LimitOrder is a simulated conditional entry. Size is the cash committed,
// reserved from the portfolio while the order is PENDING.
type LimitOrder struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Direction   OrderDirection  `json:"direction"`
	LimitPrice  decimal.Decimal `json:"limit_price"`
	TP1         decimal.Decimal `json:"tp1"`
	TP2         decimal.Decimal `json:"tp2"`
	TP3         decimal.Decimal `json:"tp3"`
	SL          decimal.Decimal `json:"sl"`
	Size        decimal.Decimal `json:"size"`
	Confidence  float64         `json:"confidence"`
	Reason      string          `json:"reason"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	FilledAt    *time.Time      `json:"filled_at,omitempty"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
	PositionID  string          `json:"position_id,omitempty"`
}

// Crossed reports whether price satisfies the fill condition of the order.
func (o *LimitOrder) Crossed(price decimal.Decimal) bool {
	if o.Direction == DirectionSellLimit {
		return price.GreaterThanOrEqual(o.LimitPrice)
	}
	return price.LessThanOrEqual(o.LimitPrice)
}

// Expired reports whether the order TTL has elapsed at now.
func (o *LimitOrder) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
