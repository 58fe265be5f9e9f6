package news

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL     string        `envconfig:"NEWS_BASE_URL" default:"https://economic-calendar.tradingview.com"`
	BlockBefore time.Duration `envconfig:"NEWS_BLOCK_BEFORE" default:"15m"`
	BlockAfter  time.Duration `envconfig:"NEWS_BLOCK_AFTER" default:"15m"`
	Countries   []string      `envconfig:"NEWS_COUNTRIES" default:"US"`
	Refresh     time.Duration `envconfig:"NEWS_REFRESH" default:"1h"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
