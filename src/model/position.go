package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

func (s PositionSide) Valid() bool {
	return s == SideLong || s == SideShort
}

type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "OPEN"
	PositionStatusClosed PositionStatus = "CLOSED"
)

type CloseReason string

const (
	CloseReasonSL     CloseReason = "SL"
	CloseReasonTP1    CloseReason = "TP1"
	CloseReasonTP2    CloseReason = "TP2"
	CloseReasonTP3    CloseReason = "TP3"
	CloseReasonManual CloseReason = "MANUAL"
)

type Position struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Side         PositionSide    `json:"side"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Size         decimal.Decimal `json:"size"`
	Quantity     decimal.Decimal `json:"quantity"`
	TP1          decimal.Decimal `json:"tp1"`
	TP2          decimal.Decimal `json:"tp2"`
	TP3          decimal.Decimal `json:"tp3"`
	SL           decimal.Decimal `json:"sl"`
	Pnl          decimal.Decimal `json:"pnl"`
	PnlPercent   decimal.Decimal `json:"pnl_percent"`
	Status       PositionStatus  `json:"status"`
	CloseReason  CloseReason     `json:"close_reason,omitempty"`
	OpenedAt     time.Time       `json:"opened_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	OrderID      string          `json:"order_id,omitempty"`
}

// Mark sets the current price and recomputes pnl. The loss is capped at the
// committed size: a position never returns less than zero cash.
func (p *Position) Mark(price decimal.Decimal) {
	p.CurrentPrice = price

	diff := price.Sub(p.EntryPrice)
	if p.Side == SideShort {
		diff = diff.Neg()
	}
	pnl := diff.Mul(p.Quantity)
	if floor := p.Size.Neg(); pnl.LessThan(floor) {
		pnl = floor
	}

	p.Pnl = pnl
	if p.Size.IsPositive() {
		p.PnlPercent = pnl.Div(p.Size).Mul(decimal.NewFromInt(100))
	} else {
		p.PnlPercent = decimal.Zero
	}
}

// Value is the cash the position would return if closed at its mark.
func (p *Position) Value() decimal.Decimal {
	return p.Size.Add(p.Pnl)
}
