// internal/workers/datasource/load-oracle-data/config.go
package loadoracledata

import (
	"time"

	"es-query-studio/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// FetchLimit applies when the input does not carry a limit.
	FetchLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    2 * time.Minute,
		FetchLimit: 10000,
	}
}

func ConfigFrom(w config.WorkerConfig, oracle config.OracleConfig) *Config {
	cfg := LoadConfig()
	if w.Timeout > 0 {
		cfg.Timeout = config.GetDuration(w.Timeout)
	}
	if oracle.FetchLimit > 0 {
		cfg.FetchLimit = oracle.FetchLimit
	}
	return cfg
}
