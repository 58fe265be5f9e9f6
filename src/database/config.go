package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	// Driver selects the journal backend. Empty disables the journal.
	Driver       string `envconfig:"JOURNAL_DRIVER" default:""`
	DSN          string `envconfig:"JOURNAL_DSN" default:"file:papertrader.db?cache=shared"`
	GormLogLevel int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
