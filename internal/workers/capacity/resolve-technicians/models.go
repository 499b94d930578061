// internal/workers/capacity/resolve-technicians/models.go
package resolvetechnicians

import "capacity-engine/internal/models"

type Input struct {
	// ForceRefresh drops cached name matches before resolving.
	ForceRefresh bool `json:"forceRefresh"`
}

type Output struct {
	Technicians []models.Technician `json:"technicians"`
	Assignments []Assignment        `json:"assignments"`
	Unresolved  []string            `json:"unresolved,omitempty"`
}

// Assignment explains how one configured technician was mapped.
type Assignment struct {
	Name         string `json:"name"`
	EmployeeID   string `json:"employeeId,omitempty"`
	EmployeeName string `json:"employeeName,omitempty"`
	Source       string `json:"source"` // config | cache | match | roster | none
	Active       bool   `json:"active"`
}

const (
	SourceConfig = "config"
	SourceCache  = "cache"
	SourceMatch  = "match"
	SourceRoster = "roster"
	SourceNone   = "none"
)
