// internal/workers/capacity/reconcile-availability/models.go
package reconcileavailability

import (
	"time"

	"capacity-engine/internal/models"
)

type Input struct {
	Date        string                 `json:"date"` // YYYY-MM-DD, operating timezone
	Now         time.Time              `json:"now"`
	Technicians []models.Technician    `json:"technicians"`
	Windows     []models.BookingWindow `json:"windows"`
	Jobs        []models.Job           `json:"jobs"`
}

type Output struct {
	// Windows holds the bookable grid windows (Calculated=true) followed by
	// provider windows off the grid. Cut-off windows are excluded.
	Windows []models.BookingWindow `json:"windows"`
	// CutOff lists grid windows dropped by the booking cutoff.
	CutOff []models.BookingWindow `json:"cutOff"`
	// ProviderWindows is the number of windows the provider reported.
	ProviderWindows int `json:"providerWindows"`
	// Overridden counts windows whose provider availability changed.
	Overridden int `json:"overridden"`
	// LastSlotEnd is the end of the day's last grid slot.
	LastSlotEnd time.Time `json:"lastSlotEnd"`
	// Busy maps technician ID to the labels of grid slots they are busy in.
	Busy map[string][]string `json:"busy"`
}
