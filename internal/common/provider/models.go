// internal/common/provider/models.go
package provider

import (
	"time"

	"capacity-engine/internal/models"
)

// JobFilter selects jobs by scheduled start range and work status.
type JobFilter struct {
	From     time.Time
	To       time.Time
	Statuses []models.WorkStatus
}

type employeeDTO struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active"`
}

type employeesPage struct {
	Employees  []employeeDTO `json:"employees"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

type bookingWindowDTO struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Date        string    `json:"date"`
	Available   bool      `json:"available"`
	EmployeeIDs []string  `json:"employee_ids"`
}

type bookingWindowsResponse struct {
	BookingWindows []bookingWindowDTO `json:"booking_windows"`
}

type timeRangeDTO struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

type jobDTO struct {
	ID                  string        `json:"id"`
	AssignedEmployeeIDs []string      `json:"assigned_employee_ids"`
	ScheduledStart      *time.Time    `json:"scheduled_start"`
	ScheduledEnd        *time.Time    `json:"scheduled_end"`
	WorkStatus          string        `json:"work_status"`
	WorkStartedAt       *time.Time    `json:"work_started_at"`
	WorkCompletedAt     *time.Time    `json:"work_completed_at"`
	ArrivalWindow       *timeRangeDTO `json:"arrival_window"`
}

type jobsPage struct {
	Jobs       []jobDTO `json:"jobs"`
	Page       int      `json:"page"`
	TotalPages int      `json:"total_pages"`
}

func (d employeeDTO) toModel() models.Employee {
	return models.Employee{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Active:    d.IsActive,
	}
}

func (d bookingWindowDTO) toModel() models.BookingWindow {
	return models.BookingWindow{
		Start:                 d.StartTime,
		End:                   d.EndTime,
		Date:                  d.Date,
		Available:             d.Available,
		AssignedTechnicianIDs: d.EmployeeIDs,
	}
}

func (d jobDTO) toModel() models.Job {
	job := models.Job{
		ID:                    d.ID,
		AssignedTechnicianIDs: d.AssignedEmployeeIDs,
		ScheduledStart:        d.ScheduledStart,
		ScheduledEnd:          d.ScheduledEnd,
		WorkStatus:            models.WorkStatus(d.WorkStatus),
		WorkStart:             d.WorkStartedAt,
		WorkEnd:               d.WorkCompletedAt,
	}
	if d.ArrivalWindow != nil && d.ArrivalWindow.Start != nil && d.ArrivalWindow.End != nil {
		job.ArrivalWindow = &models.TimeRange{Start: *d.ArrivalWindow.Start, End: *d.ArrivalWindow.End}
	}
	return job
}
