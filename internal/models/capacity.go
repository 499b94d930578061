// internal/models/capacity.go
package models

import "time"

type CapacityState string

const (
	StateSameDayFeeWaived CapacityState = "SAME_DAY_FEE_WAIVED"
	StateLimitedSameDay   CapacityState = "LIMITED_SAME_DAY"
	StateNextDay          CapacityState = "NEXT_DAY"
	StateEmergencyOnly    CapacityState = "EMERGENCY_ONLY"
)

type TechnicianCapacity struct {
	TechnicianID         string          `json:"technician_id"`
	Name                 string          `json:"name"`
	Score                float64         `json:"score"`
	OpenWindows          []BookingWindow `json:"open_windows"`
	BookedMinutes        int             `json:"booked_minutes"`
	TotalBookableMinutes int             `json:"total_bookable_minutes"`
}

type OverallCapacity struct {
	Score float64       `json:"score"`
	State CapacityState `json:"state"`
}

// ExpressWindow is a consolidated same-day slot with the technicians
// free in it, in priority order. Technicians is never empty.
type ExpressWindow struct {
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	Technicians []TechnicianRef `json:"technicians"`
}

type CapacityResponse struct {
	Date            string               `json:"date"`
	Overall         OverallCapacity      `json:"overall"`
	Technicians     []TechnicianCapacity `json:"technicians"`
	UICopyKey       string               `json:"ui_copy_key"`
	ExpiresAt       time.Time            `json:"expires_at"`
	ExpressEligible bool                 `json:"express_eligible"`
	Zip             string               `json:"zip,omitempty"`
	ZipTier         string               `json:"zip_tier,omitempty"`
	ExpressWindows  []ExpressWindow      `json:"express_windows"`
	Degraded        bool                 `json:"degraded"`
	DegradedReason  string               `json:"degraded_reason,omitempty"`
	ComputedAt      time.Time            `json:"computed_at"`
}
