// internal/workers/capacity/refresh-cache/handler.go
package refreshcache

import (
	"context"
	"time"

	"capacity-engine/internal/common/config"
	"capacity-engine/internal/common/logger"
	"capacity-engine/internal/models"
	calculatecapacity "capacity-engine/internal/workers/capacity/calculate-capacity"
)

const TaskType = "refresh-cache"

type Calculator interface {
	Execute(ctx context.Context, input *calculatecapacity.Input) (*models.CapacityResponse, error)
	DateFor(offset int) string
}

type Config struct {
	Interval time.Duration
	// Days are offsets from today to keep warm.
	Days []int
}

func LoadConfig(cfg config.CapacityConfig) *Config {
	return &Config{
		Interval: config.GetDuration(cfg.RefreshInterval),
		Days:     []int{0, 1},
	}
}

// Handler periodically recomputes the capacity cache so visitors rarely
// wait on the provider.
type Handler struct {
	config *Config
	calc   Calculator
	logger logger.Logger
}

func NewHandler(config *Config, calc Calculator, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		calc:   calc,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Enabled reports whether a refresh interval is configured.
func (h *Handler) Enabled() bool {
	return h.config.Interval > 0
}

// Run refreshes immediately and then on every tick until ctx is done.
func (h *Handler) Run(ctx context.Context) error {
	if !h.Enabled() {
		<-ctx.Done()
		return ctx.Err()
	}

	t := time.NewTicker(h.config.Interval)
	defer t.Stop()

	// kick immediately
	h.RefreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			h.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce recomputes every configured day and returns how many failed.
func (h *Handler) RefreshOnce(ctx context.Context) int {
	failed := 0
	for _, offset := range h.config.Days {
		if ctx.Err() != nil {
			return failed
		}
		date := h.calc.DateFor(offset)
		resp, err := h.calc.Execute(ctx, &calculatecapacity.Input{Date: date, ForceRefresh: true})
		if err != nil {
			failed++
			h.logger.Warn("capacity refresh failed", map[string]interface{}{
				"date":  date,
				"error": err.Error(),
			})
			continue
		}
		h.logger.Debug("capacity refreshed", map[string]interface{}{
			"date":      date,
			"state":     string(resp.Overall.State),
			"expiresAt": resp.ExpiresAt,
		})
	}
	return failed
}
