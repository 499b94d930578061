// internal/models/technician.go
package models

import "strings"

// Employee is an upstream provider employee record.
type Employee struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Active    bool   `json:"active"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Technician is a resolved, schedulable employee.
type Technician struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Priority int    `json:"priority"`
}

type TechnicianRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
