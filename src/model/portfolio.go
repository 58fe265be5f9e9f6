package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PnlSample struct {
	Timestamp  time.Time       `json:"timestamp"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// Portfolio is the simulated account of a single user.
//
// Invariants kept by the engine:
//   - Balance >= 0 and ReservedBalance == sum of PendingOrders[i].Size
//   - at most one pending order or open position per symbol
type Portfolio struct {
	UserID          string          `json:"user_id"`
	Balance         decimal.Decimal `json:"balance"`
	ReservedBalance decimal.Decimal `json:"reserved_balance"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`
	Positions       []Position      `json:"positions"`
	PendingOrders   []LimitOrder    `json:"pending_orders"`
	ClosedTrades    []Position      `json:"closed_trades"`
	CancelledOrders []LimitOrder    `json:"cancelled_orders"`
	PnlHistory      []PnlSample     `json:"pnl_history"`
	TotalTrades     int             `json:"total_trades"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	WinRate         decimal.Decimal `json:"win_rate"`
	TotalPnl        decimal.Decimal `json:"total_pnl"`
	TotalPnlPercent decimal.Decimal `json:"total_pnl_percent"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewPortfolio returns an empty portfolio funded with initial and seeded with
// one pnl sample.
func NewPortfolio(userID string, initial decimal.Decimal, now time.Time) *Portfolio {
	return &Portfolio{
		UserID:          userID,
		Balance:         initial,
		ReservedBalance: decimal.Zero,
		InitialBalance:  initial,
		Positions:       []Position{},
		PendingOrders:   []LimitOrder{},
		ClosedTrades:    []Position{},
		CancelledOrders: []LimitOrder{},
		PnlHistory:      []PnlSample{{Timestamp: now, TotalValue: initial}},
		WinRate:         decimal.Zero,
		TotalPnl:        decimal.Zero,
		TotalPnlPercent: decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// TotalValue is Balance plus ReservedBalance plus the marked value of every
// open position. Balance still includes reserved cash until the order fills,
// so pending reservations are counted twice; the sample formula is kept as is.
func (p *Portfolio) TotalValue() decimal.Decimal {
	total := p.Balance.Add(p.ReservedBalance)
	for i := range p.Positions {
		total = total.Add(p.Positions[i].Value())
	}
	return total
}

func (p *Portfolio) Available() decimal.Decimal {
	return p.Balance.Sub(p.ReservedBalance)
}

// Exposed reports whether symbol already has a pending order or an open position.
func (p *Portfolio) Exposed(symbol string) bool {
	for i := range p.PendingOrders {
		if p.PendingOrders[i].Symbol == symbol {
			return true
		}
	}
	for i := range p.Positions {
		if p.Positions[i].Symbol == symbol {
			return true
		}
	}
	return false
}

// Symbols returns the symbols referenced by open positions and pending orders.
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.Positions)+len(p.PendingOrders))
	for i := range p.Positions {
		out = append(out, p.Positions[i].Symbol)
	}
	for i := range p.PendingOrders {
		out = append(out, p.PendingOrders[i].Symbol)
	}
	return out
}

// Clone returns a deep copy safe to hand out of the store.
func (p *Portfolio) Clone() Portfolio {
	c := *p
	c.Positions = append([]Position{}, p.Positions...)
	c.PendingOrders = append([]LimitOrder{}, p.PendingOrders...)
	c.ClosedTrades = append([]Position{}, p.ClosedTrades...)
	c.CancelledOrders = append([]LimitOrder{}, p.CancelledOrders...)
	c.PnlHistory = append([]PnlSample{}, p.PnlHistory...)
	return c
}
