package scheduler

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod      time.Duration `envconfig:"LOOP_PERIOD" default:"5m"`
	WatchList       []string      `envconfig:"WATCH_LIST" default:"BTCUSDT,ETHUSDT,SOLUSDT"`
	MinConfidence   float64       `envconfig:"MIN_CONFIDENCE" default:"7"`
	MinRewardRisk   float64       `envconfig:"MIN_REWARD_RISK" default:"1.5"`
	RiskPercent     float64       `envconfig:"RISK_PERCENT" default:"2"`
	PriceTimeout    time.Duration `envconfig:"PRICE_TIMEOUT" default:"10s"`
	SignalTimeout   time.Duration `envconfig:"SIGNAL_TIMEOUT" default:"30s"`
	LogBufferSize   int           `envconfig:"LOG_BUFFER_SIZE" default:"50"`
	DegradedAfter   int           `envconfig:"DEGRADED_AFTER" default:"3"`
	NewsGateEnabled bool          `envconfig:"NEWS_GATE_ENABLED" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
