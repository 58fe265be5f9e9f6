package market

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	SourceBinance = "binance"
	SourceGoex    = "goex"
)

type Config struct {
	PriceSource   string `envconfig:"PRICE_SOURCE" default:"binance"`
	BaseURL       string `envconfig:"MARKET_BASE_URL" default:"https://api.binance.com"`
	QuoteAsset    string `envconfig:"QUOTE_ASSET" default:"USDT"`
	KlineLimit    int    `envconfig:"KLINE_LIMIT" default:"50"`
	KlineInterval string `envconfig:"KLINE_INTERVAL" default:"1h"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
