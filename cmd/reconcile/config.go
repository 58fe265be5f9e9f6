package reconcile

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Users    []string      `envconfig:"RECONCILE_USERS" default:"paper"`
	Cycles   int           `envconfig:"RECONCILE_CYCLES" default:"1"`
	Interval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
