package engine

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Fixed capacity and retention limits of a portfolio.
const (
	MaxOpenPositions   = 3
	MaxPendingOrders   = 5
	OrderTTL           = 72 * time.Hour
	ClosedTradesCap    = 100
	CancelledOrdersCap = 100
	PnlHistoryCap      = 500
)

type Config struct {
	InitialBalance     float64 `envconfig:"INITIAL_BALANCE" default:"10000"`
	MinOrderSize       float64 `envconfig:"MIN_ORDER_SIZE" default:"10"`
	DefaultRiskPercent float64 `envconfig:"DEFAULT_RISK_PERCENT" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
