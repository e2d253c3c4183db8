// internal/workers/query/compile-query/config.go
package compilequery

import (
	"time"

	"es-query-studio/internal/common/config"
)

type Config struct {
	Timeout     time.Duration
	DefaultFrom int
	DefaultSize int
	MaxSize     int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     5 * time.Second,
		DefaultFrom: 0,
		DefaultSize: 10,
		MaxSize:     10000,
	}
}

// ConfigFrom applies the worker timeout and query paging defaults.
func ConfigFrom(w config.WorkerConfig, q config.QueryConfig) *Config {
	cfg := LoadConfig()
	if w.Timeout > 0 {
		cfg.Timeout = config.GetDuration(w.Timeout)
	}
	cfg.DefaultFrom = q.DefaultFrom
	if q.DefaultSize > 0 {
		cfg.DefaultSize = q.DefaultSize
	}
	if q.MaxSize > 0 {
		cfg.MaxSize = q.MaxSize
	}
	return cfg
}
