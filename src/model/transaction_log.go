package model

import "time"

// TradeRecord is the journal row written for every closed position.
type TradeRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"size:100;index;not null" json:"user_id"`
	PositionID  string    `gorm:"size:36;uniqueIndex;not null" json:"position_id"`
	OrderID     string    `gorm:"size:36" json:"order_id,omitempty"`
	Symbol      string    `gorm:"size:50;not null" json:"symbol"`
	Side        string    `gorm:"size:10;not null" json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	Size        float64   `json:"size"`
	Quantity    float64   `json:"quantity"`
	Pnl         float64   `json:"pnl"`
	PnlPercent  float64   `json:"pnl_percent"`
	CloseReason string    `gorm:"size:10;not null" json:"close_reason"`
	OpenedAt    time.Time `json:"opened_at"`
	ClosedAt    time.Time `gorm:"index" json:"closed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}

// NewTradeRecord flattens a closed position into a journal row.
func NewTradeRecord(userID string, p Position) TradeRecord {
	rec := TradeRecord{
		UserID:      userID,
		PositionID:  p.ID,
		OrderID:     p.OrderID,
		Symbol:      p.Symbol,
		Side:        string(p.Side),
		EntryPrice:  p.EntryPrice.InexactFloat64(),
		ExitPrice:   p.CurrentPrice.InexactFloat64(),
		Size:        p.Size.InexactFloat64(),
		Quantity:    p.Quantity.InexactFloat64(),
		Pnl:         p.Pnl.InexactFloat64(),
		PnlPercent:  p.PnlPercent.InexactFloat64(),
		CloseReason: string(p.CloseReason),
		OpenedAt:    p.OpenedAt,
	}
	if p.ClosedAt != nil {
		rec.ClosedAt = *p.ClosedAt
	}
	return rec
}
