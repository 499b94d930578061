// internal/workers/capacity/record-decision/models.go
package recorddecision

import "time"

// Decision is the audit record of one computed or degraded capacity state.
type Decision struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	State           string    `json:"state"`
	Rule            string    `json:"rule"`
	Score           float64   `json:"score"`
	Technicians     int       `json:"technicians"`
	OpenWindows     int       `json:"openWindows"`
	ProviderWindows int       `json:"providerWindows"`
	ExpressWindows  int       `json:"expressWindows"`
	Degraded        bool      `json:"degraded"`
	DegradedReason  string    `json:"degradedReason,omitempty"`
	RequestID       string    `json:"requestId,omitempty"`
	ComputedAt      time.Time `json:"computedAt"`
}
