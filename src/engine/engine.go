package engine

import (
	"errors"
	"time"

	"papertrader/src/model"
	"papertrader/src/risk"
	"papertrader/src/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrPendingCapReached  = errors.New("pending order capacity reached")
	ErrPositionCapReached = errors.New("open position capacity reached")
	ErrDuplicateExposure  = errors.New("symbol already has a pending order or open position")
	ErrLimitWrongSide     = errors.New("limit price on the wrong side of the observed price")
	ErrLevelsMisordered   = risk.ErrLevelsMisordered
	ErrSizeTooSmall       = errors.New("order size below minimum")
	ErrInsufficientFunds  = errors.New("insufficient available balance")
	ErrOrderNotFound      = errors.New("pending order not found")
	ErrPositionNotFound   = errors.New("open position not found")
)

// Engine applies order and position transitions to portfolios held in a
// Store. It keeps no state of its own between calls; every operation runs
// under the user's store lock and either fully applies or leaves the
// portfolio untouched.
type Engine struct {
	store        *store.Store
	logger       *logrus.Entry
	minOrderSize decimal.Decimal
	defaultRisk  decimal.Decimal
	now          func() time.Time
}

func NewEngine(st *store.Store, cfg Config, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Engine{
		store:        st,
		logger:       logger.WithField("component", "engine"),
		minOrderSize: decimal.NewFromFloat(cfg.MinOrderSize),
		defaultRisk:  decimal.NewFromFloat(cfg.DefaultRiskPercent),
		now:          time.Now,
	}
}

// GetPortfolio returns a copy of the user's portfolio, creating it on first access.
func (e *Engine) GetPortfolio(userID string) (model.Portfolio, error) {
	return e.store.Snapshot(userID)
}

// ResetPortfolio discards all state and refunds the fixed starting balance.
func (e *Engine) ResetPortfolio(userID string) (model.Portfolio, error) {
	var out model.Portfolio
	err := e.store.Update(userID, func(p *model.Portfolio) error {
		*p = *model.NewPortfolio(userID, e.store.InitialBalance(), e.now())
		out = p.Clone()
		return nil
	})
	if err != nil {
		return out, err
	}

	e.logger.WithField("user_id", userID).Info("portfolio reset")
	return out, nil
}

// sizeFor computes the cash committed by a new order or position.
func (e *Engine) sizeFor(p *model.Portfolio, riskPercent decimal.Decimal) decimal.Decimal {
	if !riskPercent.IsPositive() {
		riskPercent = e.defaultRisk
	}
	return risk.SizeFromPercent(p.Balance, riskPercent)
}

func releaseReservation(p *model.Portfolio, size decimal.Decimal) {
	p.ReservedBalance = p.ReservedBalance.Sub(size)
	if p.ReservedBalance.IsNegative() {
		p.ReservedBalance = decimal.Zero
	}
}

func archiveOrder(p *model.Portfolio, o model.LimitOrder) {
	p.CancelledOrders = append([]model.LimitOrder{o}, p.CancelledOrders...)
	if len(p.CancelledOrders) > CancelledOrdersCap {
		p.CancelledOrders = p.CancelledOrders[:CancelledOrdersCap]
	}
}

func appendSample(p *model.Portfolio, now time.Time) {
	p.PnlHistory = append(p.PnlHistory, model.PnlSample{Timestamp: now, TotalValue: p.TotalValue()})
	if over := len(p.PnlHistory) - PnlHistoryCap; over > 0 {
		p.PnlHistory = append([]model.PnlSample{}, p.PnlHistory[over:]...)
	}
}
