package engine

import (
	"fmt"
	"strings"
	"time"

	"papertrader/src/model"
	"papertrader/src/risk"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type OpenPositionRequest struct {
	Symbol      string             `json:"symbol"`
	Side        model.PositionSide `json:"side"`
	Price       decimal.Decimal    `json:"price"`
	TP1         decimal.Decimal    `json:"tp1"`
	TP2         decimal.Decimal    `json:"tp2"`
	TP3         decimal.Decimal    `json:"tp3"`
	SL          decimal.Decimal    `json:"sl"`
	RiskPercent decimal.Decimal    `json:"risk_percent"`
}

// MarkReport lists positions closed by UpdatePositions and those still open.
type MarkReport struct {
	Closed []model.Position
	Open   []model.Position
}

// closeTrigger evaluates exit levels in a fixed priority: SL, then TP3, TP2,
// TP1. Only one reason is returned per evaluation, so a price that crossed
// several take-profits since the last mark closes at the farthest one.
// Intrabar ordering is not modeled; a tick that jumped through TP1 and then
// reversed to the stop is reported as SL.
func closeTrigger(p *model.Position) (model.CloseReason, bool) {
	price := p.CurrentPrice
	if p.Side == model.SideShort {
		switch {
		case price.GreaterThanOrEqual(p.SL):
			return model.CloseReasonSL, true
		case price.LessThanOrEqual(p.TP3):
			return model.CloseReasonTP3, true
		case price.LessThanOrEqual(p.TP2):
			return model.CloseReasonTP2, true
		case price.LessThanOrEqual(p.TP1):
			return model.CloseReasonTP1, true
		}
		return "", false
	}

	switch {
	case price.LessThanOrEqual(p.SL):
		return model.CloseReasonSL, true
	case price.GreaterThanOrEqual(p.TP3):
		return model.CloseReasonTP3, true
	case price.GreaterThanOrEqual(p.TP2):
		return model.CloseReasonTP2, true
	case price.GreaterThanOrEqual(p.TP1):
		return model.CloseReasonTP1, true
	}
	return "", false
}

// closePosition returns size+pnl to the balance exactly once and archives
// the position. Caller holds the store lock.
func closePosition(p *model.Portfolio, pos model.Position, reason model.CloseReason, now time.Time) model.Position {
	pos.Status = model.PositionStatusClosed
	pos.CloseReason = reason
	pos.ClosedAt = &now

	p.Balance = p.Balance.Add(pos.Value())
	p.TotalPnl = p.TotalPnl.Add(pos.Pnl)
	p.TotalTrades++
	if pos.Pnl.IsPositive() {
		p.Wins++
	} else {
		p.Losses++
	}
	p.WinRate = decimal.NewFromInt(int64(p.Wins)).
		Div(decimal.NewFromInt(int64(p.TotalTrades))).
		Mul(decimal.NewFromInt(100))
	if p.InitialBalance.IsPositive() {
		p.TotalPnlPercent = p.TotalPnl.Div(p.InitialBalance).Mul(decimal.NewFromInt(100))
	}

	p.ClosedTrades = append([]model.Position{pos}, p.ClosedTrades...)
	if len(p.ClosedTrades) > ClosedTradesCap {
		p.ClosedTrades = p.ClosedTrades[:ClosedTradesCap]
	}
	p.UpdatedAt = now
	return pos
}

// UpdatePositions marks every open position to prices, closes the ones whose
// exit levels were reached and appends one pnl sample. Positions without a
// known price keep their previous mark.
func (e *Engine) UpdatePositions(userID string, prices model.Prices) (MarkReport, error) {
	var report MarkReport
	err := e.store.Update(userID, func(p *model.Portfolio) error {
		now := e.now()
		open := make([]model.Position, 0, len(p.Positions))

		for _, pos := range p.Positions {
			price, ok := prices.Get(pos.Symbol)
			if !ok {
				price = pos.CurrentPrice
			}
			pos.Mark(price)

			if reason, hit := closeTrigger(&pos); hit {
				report.Closed = append(report.Closed, closePosition(p, pos, reason, now))
				continue
			}
			open = append(open, pos)
		}

		p.Positions = open
		report.Open = append([]model.Position{}, open...)
		appendSample(p, now)
		return nil
	})
	if err != nil {
		return MarkReport{}, err
	}

	for _, pos := range report.Closed {
		e.logger.WithFields(logrus.Fields{
			"user_id":     userID,
			"position_id": pos.ID,
			"symbol":      pos.Symbol,
			"reason":      pos.CloseReason,
			"pnl":         pos.Pnl.StringFixed(2),
		}).Info("position closed")
	}

	return report, nil
}

// OpenPosition opens a position immediately at req.Price, skipping the
// pending-order stage.
func (e *Engine) OpenPosition(userID string, req OpenPositionRequest) (model.Position, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" || !req.Side.Valid() {
		return model.Position{}, fmt.Errorf("%w: symbol and side are required", ErrInvalidRequest)
	}
	if !req.Price.IsPositive() {
		return model.Position{}, fmt.Errorf("%w: price must be positive", ErrInvalidRequest)
	}

	var pos model.Position
	err := e.store.Update(userID, func(p *model.Portfolio) error {
		if len(p.Positions) >= MaxOpenPositions {
			return fmt.Errorf("%w: %d open positions", ErrPositionCapReached, len(p.Positions))
		}
		if p.Exposed(req.Symbol) {
			return fmt.Errorf("%w: %s", ErrDuplicateExposure, req.Symbol)
		}
		if err := risk.ValidateLevels(req.Side, req.Price, req.TP1, req.TP2, req.TP3, req.SL); err != nil {
			return err
		}

		size := e.sizeFor(p, req.RiskPercent)
		if size.LessThan(e.minOrderSize) {
			return fmt.Errorf("%w: %s < %s", ErrSizeTooSmall, size.StringFixed(2), e.minOrderSize.StringFixed(2))
		}
		if size.GreaterThan(p.Available()) {
			return fmt.Errorf("%w: need %s, available %s", ErrInsufficientFunds, size.StringFixed(2), p.Available().StringFixed(2))
		}

		now := e.now()
		pos = model.Position{
			ID:           uuid.NewString(),
			Symbol:       req.Symbol,
			Side:         req.Side,
			EntryPrice:   req.Price,
			CurrentPrice: req.Price,
			Size:         size,
			Quantity:     size.Div(req.Price),
			TP1:          req.TP1,
			TP2:          req.TP2,
			TP3:          req.TP3,
			SL:           req.SL,
			Pnl:          decimal.Zero,
			PnlPercent:   decimal.Zero,
			Status:       model.PositionStatusOpen,
			OpenedAt:     now,
		}

		p.Balance = p.Balance.Sub(size)
		p.Positions = append(p.Positions, pos)
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Position{}, err
	}

	e.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"position_id": pos.ID,
		"symbol":      pos.Symbol,
		"side":        pos.Side,
		"entry":       pos.EntryPrice.String(),
	}).Info("position opened")

	return pos, nil
}

// ClosePosition closes an open position at its current mark with reason MANUAL.
func (e *Engine) ClosePosition(userID, positionID string) (model.Position, error) {
	var closed model.Position
	err := e.store.Update(userID, func(p *model.Portfolio) error {
		idx := -1
		for i := range p.Positions {
			if p.Positions[i].ID == positionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrPositionNotFound, positionID)
		}

		pos := p.Positions[idx]
		pos.Mark(pos.CurrentPrice)
		p.Positions = append(p.Positions[:idx:idx], p.Positions[idx+1:]...)
		closed = closePosition(p, pos, model.CloseReasonManual, e.now())
		return nil
	})
	if err != nil {
		return model.Position{}, err
	}

	e.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"position_id": positionID,
		"symbol":      closed.Symbol,
		"pnl":         closed.Pnl.StringFixed(2),
	}).Info("position closed manually")

	return closed, nil
}
