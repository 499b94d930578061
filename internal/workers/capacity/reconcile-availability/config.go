// internal/workers/capacity/reconcile-availability/config.go
package reconcileavailability

import (
	"fmt"
	"time"

	"capacity-engine/internal/common/config"
)

// Slot is one standard daily window in minutes after local midnight.
type Slot struct {
	Label       string
	StartMinute int
	EndMinute   int
}

type Config struct {
	Location      *time.Location
	Slots         []Slot
	BookingCutoff time.Duration
}

func LoadConfig(cfg config.CapacityConfig) (*Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	slotCfgs := cfg.Slots
	if len(slotCfgs) == 0 {
		slotCfgs = config.DefaultSlots()
	}
	slots := make([]Slot, 0, len(slotCfgs))
	for _, s := range slotCfgs {
		start, end, err := s.StartEnd()
		if err != nil {
			return nil, err
		}
		slots = append(slots, Slot{Label: s.Label, StartMinute: start, EndMinute: end})
	}

	return &Config{
		Location:      loc,
		Slots:         slots,
		BookingCutoff: time.Duration(cfg.BookingCutoffMinutes) * time.Minute,
	}, nil
}
