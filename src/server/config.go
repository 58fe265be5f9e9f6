package server

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port            string        `envconfig:"PORT" default:"9898"`
	APITokenHash    string        `envconfig:"API_TOKEN_HASH"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
	StreamInterval  time.Duration `envconfig:"STREAM_INTERVAL" default:"2s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
