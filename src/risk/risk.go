package risk

import (
	"errors"
	"fmt"

	"papertrader/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrLevelsMisordered = errors.New("take-profit/stop-loss levels misordered")
	ErrNonPositivePrice = errors.New("price must be positive")
)

var hundred = decimal.NewFromInt(100)

// SizeFromPercent returns balance * percent / 100 with percent clamped to (0, 100].
// A non-positive percent yields zero.
func SizeFromPercent(balance, percent decimal.Decimal) decimal.Decimal {
	if !percent.IsPositive() || !balance.IsPositive() {
		return decimal.Zero
	}

	if percent.GreaterThan(hundred) {
		logger.WithFields(logger.Fields{
			"original_pct": percent.String(),
			"adjusted_pct": hundred.String(),
		}).Warn("Risk percent above maximum, clamped to 100")
		percent = hundred
	}

	return balance.Mul(percent).Div(hundred).Round(8)
}

// ValidateLevels checks stop-loss and take-profits against entry for side.
//
// LONG:  sl < entry < tp1 < tp2 < tp3
// SHORT: tp3 < tp2 < tp1 < entry < sl
func ValidateLevels(side model.PositionSide, entry, tp1, tp2, tp3, sl decimal.Decimal) error {
	for _, v := range []decimal.Decimal{entry, tp1, tp2, tp3, sl} {
		if !v.IsPositive() {
			return ErrNonPositivePrice
		}
	}

	switch side {
	case model.SideLong:
		if !(sl.LessThan(entry) && entry.LessThan(tp1)) {
			return fmt.Errorf("%w: LONG requires sl < entry < tp1 (sl=%s entry=%s tp1=%s)", ErrLevelsMisordered, sl, entry, tp1)
		}
		if !(tp1.LessThan(tp2) && tp2.LessThan(tp3)) {
			return fmt.Errorf("%w: LONG requires tp1 < tp2 < tp3", ErrLevelsMisordered)
		}
	case model.SideShort:
		if !(tp1.LessThan(entry) && entry.LessThan(sl)) {
			return fmt.Errorf("%w: SHORT requires tp1 < entry < sl (tp1=%s entry=%s sl=%s)", ErrLevelsMisordered, tp1, entry, sl)
		}
		if !(tp3.LessThan(tp2) && tp2.LessThan(tp1)) {
			return fmt.Errorf("%w: SHORT requires tp3 < tp2 < tp1", ErrLevelsMisordered)
		}
	default:
		return fmt.Errorf("unknown side %q", side)
	}
	return nil
}

// RewardRisk is |tp1 - entry| / |entry - sl|. Zero when the stop distance is zero.
func RewardRisk(entry, tp1, sl decimal.Decimal) decimal.Decimal {
	stop := entry.Sub(sl).Abs()
	if stop.IsZero() {
		return decimal.Zero
	}
	return tp1.Sub(entry).Abs().Div(stop)
}
