// internal/workers/capacity/calculate-capacity/models.go
package calculatecapacity

import "capacity-engine/internal/models"

type Input struct {
	Date string `json:"date"` // YYYY-MM-DD in the operating timezone
	Zip  string `json:"zip,omitempty"`
	// ForceRefresh skips the response cache and recomputes.
	ForceRefresh bool `json:"forceRefresh"`
}

// Rule names the state-machine branch that produced a decision.
const (
	RuleEmergencyWindow   = "emergency_window"
	RuleExpressCutoff     = "express_cutoff"
	RuleNoProviderWindows = "no_provider_windows"
	RuleNoBookableWindows = "no_bookable_windows"
	RuleDayOver           = "day_over"
	RuleNoOpenTechnician  = "no_open_technician"
	RuleScore             = "score"
	RuleFallback          = "fallback"
)

// snapshot is the ZIP-independent result kept in the response cache.
// Express windows are stored in full; eligibility is applied per request.
type snapshot struct {
	Response models.CapacityResponse `json:"response"`
	Rule     string                  `json:"rule"`
}
