package signal

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderRule = "rule"
	ProviderHTTP = "http"
)

type Config struct {
	Provider    string        `envconfig:"SIGNAL_PROVIDER" default:"rule"`
	URL         string        `envconfig:"SIGNAL_URL"`
	Timeout     time.Duration `envconfig:"SIGNAL_HTTP_TIMEOUT" default:"30s"`
	Lookback    int           `envconfig:"SIGNAL_LOOKBACK" default:"20"`
	PullbackPct float64       `envconfig:"SIGNAL_PULLBACK_PCT" default:"0.5"`
	MinRiskPct  float64       `envconfig:"SIGNAL_MIN_RISK_PCT" default:"1.0"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
