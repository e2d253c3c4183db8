// internal/workers/datasource/test-connection/config.go
package testconnection

import (
	"time"

	"es-query-studio/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// MaxTables caps the table names returned for the Oracle probe.
	MaxTables int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   15 * time.Second,
		MaxTables: 50,
	}
}

func ConfigFrom(w config.WorkerConfig) *Config {
	cfg := LoadConfig()
	if w.Timeout > 0 {
		cfg.Timeout = config.GetDuration(w.Timeout)
	}
	return cfg
}
