// internal/models/schedule.go
package models

import "time"

type WorkStatus string

const (
	WorkStatusScheduled  WorkStatus = "scheduled"
	WorkStatusInProgress WorkStatus = "in_progress"
	WorkStatusCompleted  WorkStatus = "completed"
	WorkStatusCanceled   WorkStatus = "canceled"
)

// ActiveWorkStatuses are the statuses that constrain availability.
var ActiveWorkStatuses = []WorkStatus{WorkStatusScheduled, WorkStatusInProgress}

type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether [Start,End) intersects [start,end).
func (r TimeRange) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && start.Before(r.End)
}

// BookingWindow is a bookable slot. Calculated marks windows recomputed
// from job state rather than passed through from the provider.
type BookingWindow struct {
	Start                 time.Time `json:"start"`
	End                   time.Time `json:"end"`
	Date                  string    `json:"date"`
	Label                 string    `json:"label,omitempty"`
	Available             bool      `json:"available"`
	AssignedTechnicianIDs []string  `json:"assigned_technician_ids"`
	Calculated            bool      `json:"calculated"`
}

// Minutes returns the window length, treating zero-length windows as one minute.
func (w BookingWindow) Minutes() int {
	m := int(w.End.Sub(w.Start) / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}

type Job struct {
	ID                    string     `json:"id"`
	AssignedTechnicianIDs []string   `json:"assigned_technician_ids"`
	ScheduledStart        *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd          *time.Time `json:"scheduled_end,omitempty"`
	WorkStatus            WorkStatus `json:"work_status"`
	WorkStart             *time.Time `json:"work_start,omitempty"`
	WorkEnd               *time.Time `json:"work_end,omitempty"`
	ArrivalWindow         *TimeRange `json:"arrival_window,omitempty"`
}

// IsActive reports whether the job still constrains availability.
func (j Job) IsActive() bool {
	return j.WorkStatus == WorkStatusScheduled || j.WorkStatus == WorkStatusInProgress
}
