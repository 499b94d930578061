// internal/workers/capacity/calculate-capacity/config.go
package calculatecapacity

import (
	"fmt"
	"time"

	"capacity-engine/internal/common/config"
)

const (
	Tier1 = "tier1"
	Tier2 = "tier2"
	Tier3 = "tier3"
)

type Config struct {
	Location          *time.Location
	ExpressCutoffHour int
	SameDayThreshold  float64
	LimitedThreshold  float64
	// ZipTiers maps a ZIP code to its tier. A ZIP listed in several tiers
	// keeps the lowest-numbered one.
	ZipTiers     map[string]string
	UICopy       map[string]string
	CacheTTL     time.Duration
	FallbackTTL  time.Duration
	FetchTimeout time.Duration
}

func LoadConfig(cfg config.CapacityConfig) (*Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	tiers := make(map[string]string)
	for _, t := range []struct {
		name string
		zips []string
	}{
		{Tier1, cfg.ZipTiers.Tier1},
		{Tier2, cfg.ZipTiers.Tier2},
		{Tier3, cfg.ZipTiers.Tier3},
	} {
		for _, zip := range t.zips {
			if _, exists := tiers[zip]; !exists {
				tiers[zip] = t.name
			}
		}
	}

	uiCopy := make(map[string]string, len(cfg.UICopy))
	for k, v := range cfg.UICopy {
		uiCopy[k] = v
	}

	return &Config{
		Location:          loc,
		ExpressCutoffHour: cfg.ExpressCutoffHour,
		SameDayThreshold:  cfg.Thresholds.SameDayFeeWaived,
		LimitedThreshold:  cfg.Thresholds.LimitedSameDay,
		ZipTiers:          tiers,
		UICopy:            uiCopy,
		CacheTTL:          config.GetDuration(cfg.CacheTTL),
		FallbackTTL:       config.GetDuration(cfg.FallbackTTL),
		FetchTimeout:      config.GetDuration(cfg.FetchTimeout),
	}, nil
}
