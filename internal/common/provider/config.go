// internal/common/provider/config.go
package provider

import (
	"strings"
	"time"

	"capacity-engine/internal/common/config"
)

const defaultJitter = 0.1

type Config struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	MaxRetries       int
	InitialDelay     time.Duration
	BackoffFactor    float64
	MaxDelay         time.Duration
	Jitter           float64
	CacheMinTTL      time.Duration
	CacheMaxTTL      time.Duration
	PageSize         int
	MaxPages         int
	FailureThreshold int
	Cooldown         time.Duration
}

func LoadConfig(cfg config.ProviderConfig) *Config {
	return &Config{
		BaseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		Token:            cfg.APIToken,
		Timeout:          config.GetDuration(cfg.Timeout),
		MaxRetries:       cfg.MaxRetries,
		InitialDelay:     config.GetDuration(cfg.InitialDelay),
		BackoffFactor:    cfg.BackoffFactor,
		MaxDelay:         config.GetDuration(cfg.MaxDelay),
		Jitter:           defaultJitter,
		CacheMinTTL:      config.GetDuration(cfg.CacheMinTTL),
		CacheMaxTTL:      config.GetDuration(cfg.CacheMaxTTL),
		PageSize:         cfg.PageSize,
		MaxPages:         50,
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         config.GetDuration(cfg.BreakerCooldown),
	}
}
