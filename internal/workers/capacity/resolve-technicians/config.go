// internal/workers/capacity/resolve-technicians/config.go
package resolvetechnicians

import (
	"time"

	"capacity-engine/internal/common/config"
)

type Config struct {
	Technicians []config.TechnicianConfig
	IdentityTTL time.Duration
}

func LoadConfig(cfg config.CapacityConfig) *Config {
	techs := make([]config.TechnicianConfig, len(cfg.Technicians))
	copy(techs, cfg.Technicians)
	return &Config{
		Technicians: techs,
		IdentityTTL: config.GetDuration(cfg.IdentityTTL),
	}
}
