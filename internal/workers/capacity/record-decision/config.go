// internal/workers/capacity/record-decision/config.go
package recorddecision

import (
	"time"

	"capacity-engine/internal/common/config"
)

type Config struct {
	Table   string
	Index   string
	Timeout time.Duration
}

func LoadConfig(cfg config.AuditConfig) *Config {
	return &Config{
		Table:   cfg.Table,
		Index:   cfg.Index,
		Timeout: config.GetDuration(cfg.Timeout),
	}
}
