package engine

import (
	"fmt"
	"strings"

	"papertrader/src/model"
	"papertrader/src/risk"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type LimitOrderRequest struct {
	Symbol        string               `json:"symbol"`
	Direction     model.OrderDirection `json:"direction"`
	ObservedPrice decimal.Decimal      `json:"observed_price"`
	LimitPrice    decimal.Decimal      `json:"limit_price"`
	TP1           decimal.Decimal      `json:"tp1"`
	TP2           decimal.Decimal      `json:"tp2"`
	TP3           decimal.Decimal      `json:"tp3"`
	SL            decimal.Decimal      `json:"sl"`
	Confidence    float64              `json:"confidence"`
	Reason        string               `json:"reason"`
	RiskPercent   decimal.Decimal      `json:"risk_percent"`
}

// FillReport lists the orders that changed state during CheckAndFillOrders.
type FillReport struct {
	Filled  []model.LimitOrder
	Expired []model.LimitOrder
	Opened  []model.Position
	// Blocked counts crossed orders left pending because no position slot was free.
	Blocked int
}

// PlaceLimitOrder validates req against the user's portfolio and, when every
// check passes, reserves the order size and records a PENDING order.
func (e *Engine) PlaceLimitOrder(userID string, req LimitOrderRequest) (model.LimitOrder, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" || !req.Direction.Valid() {
		return model.LimitOrder{}, fmt.Errorf("%w: symbol and direction are required", ErrInvalidRequest)
	}
	if !req.ObservedPrice.IsPositive() || !req.LimitPrice.IsPositive() {
		return model.LimitOrder{}, fmt.Errorf("%w: prices must be positive", ErrInvalidRequest)
	}

	var order model.LimitOrder
	err := e.store.Update(userID, func(p *model.Portfolio) error {
		if len(p.PendingOrders) >= MaxPendingOrders {
			return fmt.Errorf("%w: %d pending orders", ErrPendingCapReached, len(p.PendingOrders))
		}
		if p.Exposed(req.Symbol) {
			return fmt.Errorf("%w: %s", ErrDuplicateExposure, req.Symbol)
		}

		switch req.Direction {
		case model.DirectionBuyLimit:
			if !req.LimitPrice.LessThan(req.ObservedPrice) {
				return fmt.Errorf("%w: BUY_LIMIT %s must be below %s", ErrLimitWrongSide, req.LimitPrice, req.ObservedPrice)
			}
		case model.DirectionSellLimit:
			if !req.LimitPrice.GreaterThan(req.ObservedPrice) {
				return fmt.Errorf("%w: SELL_LIMIT %s must be above %s", ErrLimitWrongSide, req.LimitPrice, req.ObservedPrice)
			}
		}

		if err := risk.ValidateLevels(req.Direction.Side(), req.LimitPrice, req.TP1, req.TP2, req.TP3, req.SL); err != nil {
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
		order = model.LimitOrder{
			ID:         uuid.NewString(),
			Symbol:     req.Symbol,
			Direction:  req.Direction,
			LimitPrice: req.LimitPrice,
			TP1:        req.TP1,
			TP2:        req.TP2,
			TP3:        req.TP3,
			SL:         req.SL,
			Size:       size,
			Confidence: req.Confidence,
			Reason:     req.Reason,
			Status:     model.OrderStatusPending,
			CreatedAt:  now,
			ExpiresAt:  now.Add(OrderTTL),
		}

		p.ReservedBalance = p.ReservedBalance.Add(size)
		p.PendingOrders = append(p.PendingOrders, order)
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":   userID,
			"symbol":    req.Symbol,
			"direction": req.Direction,
		}).Warn("limit order rejected")
		return model.LimitOrder{}, err
	}

	e.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"order_id":    order.ID,
		"symbol":      order.Symbol,
		"direction":   order.Direction,
		"limit_price": order.LimitPrice.String(),
		"size":        order.Size.StringFixed(2),
	}).Info("limit order placed")

	return order, nil
}

// CancelOrder cancels a PENDING order and releases its reservation.
func (e *Engine) CancelOrder(userID, orderID string) (model.LimitOrder, error) {
	var cancelled model.LimitOrder
	err := e.store.Update(userID, func(p *model.Portfolio) error {
		idx := -1
		for i := range p.PendingOrders {
			if p.PendingOrders[i].ID == orderID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}

		now := e.now()
		cancelled = p.PendingOrders[idx]
		cancelled.Status = model.OrderStatusCancelled
		cancelled.CancelledAt = &now

		releaseReservation(p, cancelled.Size)
		archiveOrder(p, cancelled)
		p.PendingOrders = append(p.PendingOrders[:idx:idx], p.PendingOrders[idx+1:]...)
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.LimitOrder{}, err
	}

	e.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"order_id": orderID,
		"symbol":   cancelled.Symbol,
	}).Info("limit order cancelled")

	return cancelled, nil
}

// CheckAndFillOrders expires and fills pending orders against prices.
//
// Orders whose symbol has no known price are not evaluated, expiry included.
// A crossed order fills at its limit price when a position slot is free,
// otherwise it stays pending until a later call.
func (e *Engine) CheckAndFillOrders(userID string, prices model.Prices) (FillReport, error) {
	var report FillReport
	err := e.store.Update(userID, func(p *model.Portfolio) error {
		now := e.now()
		kept := make([]model.LimitOrder, 0, len(p.PendingOrders))

		for _, o := range p.PendingOrders {
			price, ok := prices.Get(o.Symbol)
			if !ok {
				kept = append(kept, o)
				continue
			}

			if o.Expired(now) {
				o.Status = model.OrderStatusExpired
				o.CancelledAt = &now
				releaseReservation(p, o.Size)
				archiveOrder(p, o)
				report.Expired = append(report.Expired, o)
				continue
			}

			if !o.Crossed(price) {
				kept = append(kept, o)
				continue
			}
			if len(p.Positions) >= MaxOpenPositions {
				report.Blocked++
				kept = append(kept, o)
				continue
			}

			pos := model.Position{
				ID:           uuid.NewString(),
				Symbol:       o.Symbol,
				Side:         o.Direction.Side(),
				EntryPrice:   o.LimitPrice,
				CurrentPrice: o.LimitPrice,
				Size:         o.Size,
				Quantity:     o.Size.Div(o.LimitPrice),
				TP1:          o.TP1,
				TP2:          o.TP2,
				TP3:          o.TP3,
				SL:           o.SL,
				Pnl:          decimal.Zero,
				PnlPercent:   decimal.Zero,
				Status:       model.PositionStatusOpen,
				OpenedAt:     now,
				OrderID:      o.ID,
			}

			releaseReservation(p, o.Size)
			p.Balance = p.Balance.Sub(o.Size)
			p.Positions = append(p.Positions, pos)

			o.Status = model.OrderStatusFilled
			o.FilledAt = &now
			o.PositionID = pos.ID
			report.Filled = append(report.Filled, o)
			report.Opened = append(report.Opened, pos)
		}

		p.PendingOrders = kept
		if len(report.Filled) > 0 || len(report.Expired) > 0 {
			p.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return FillReport{}, err
	}

	for _, o := range report.Filled {
		e.logger.WithFields(logrus.Fields{
			"user_id":     userID,
			"order_id":    o.ID,
			"symbol":      o.Symbol,
			"limit_price": o.LimitPrice.String(),
			"position_id": o.PositionID,
		}).Info("limit order filled")
	}
	for _, o := range report.Expired {
		e.logger.WithFields(logrus.Fields{
			"user_id":  userID,
			"order_id": o.ID,
			"symbol":   o.Symbol,
		}).Info("limit order expired")
	}

	return report, nil
}
