// internal/workers/capacity/resolve-technicians/handler.go
package resolvetechnicians

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"capacity-engine/internal/common/cache"
	"capacity-engine/internal/common/logger"
	"capacity-engine/internal/models"
)

const (
	TaskType = "resolve-technicians"

	identityKey = "technicians"
)

type EmployeeSource interface {
	GetEmployees(ctx context.Context) ([]models.Employee, error)
}

// Handler maps configured technicians to upstream employee IDs. Name
// matches are kept in the identity cache so they are computed at most once
// per IdentityTTL; configuration is never written to.
type Handler struct {
	config    *Config
	employees EmployeeSource
	cache     cache.Cache
	logger    logger.Logger
}

func NewHandler(config *Config, employees EmployeeSource, identity cache.Cache, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		employees: employees,
		cache:     identity,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute fetches employees and resolves against them.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input != nil && input.ForceRefresh && h.cache != nil {
		if err := h.cache.Delete(ctx, identityKey); err != nil {
			h.logger.Warn("failed to clear identity cache", map[string]interface{}{"error": err.Error()})
		}
	}

	employees, err := h.employees.GetEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch employees: %w", err)
	}
	return h.Resolve(ctx, employees), nil
}

// Resolve maps the configured technicians onto employees. Missing or
// inactive employees are skipped with a warning.
func (h *Handler) Resolve(ctx context.Context, employees []models.Employee) *Output {
	if len(h.config.Technicians) == 0 {
		return h.allActive(employees)
	}

	byID := make(map[string]models.Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}

	matches := h.loadMatches(ctx)
	dirty := false

	out := &Output{}
	type ranked struct {
		tech  models.Technician
		order int
	}
	var resolved []ranked
	seen := make(map[string]bool)

	for i, tc := range h.config.Technicians {
		a := Assignment{Name: tc.Name, Source: SourceNone}

		cached := matches[tc.Name]
		switch {
		case tc.EmployeeID != "":
			a.EmployeeID, a.Source = tc.EmployeeID, SourceConfig
		case cached != "" && byID[cached].Active:
			a.EmployeeID, a.Source = cached, SourceCache
		default:
			if cached != "" {
				// the cached employee is gone or inactive upstream
				delete(matches, tc.Name)
				dirty = true
			}
			if id := h.match(tc.Name, tc.Match, employees); id != "" {
				a.EmployeeID, a.Source = id, SourceMatch
				matches[tc.Name] = id
				dirty = true
			}
		}

		emp, ok := byID[a.EmployeeID]
		switch {
		case a.EmployeeID == "":
			h.logger.Warn("technician could not be matched to an employee", map[string]interface{}{
				"technician": tc.Name,
				"match":      tc.Match,
			})
			out.Unresolved = append(out.Unresolved, tc.Name)
		case !ok:
			h.logger.Warn("technician employee not found upstream", map[string]interface{}{
				"technician": tc.Name,
				"employeeId": a.EmployeeID,
			})
			out.Unresolved = append(out.Unresolved, tc.Name)
		case !emp.Active:
			a.EmployeeName = emp.FullName()
			h.logger.Warn("technician employee is inactive, skipping", map[string]interface{}{
				"technician": tc.Name,
				"employeeId": a.EmployeeID,
			})
		case seen[emp.ID]:
			a.EmployeeName = emp.FullName()
			h.logger.Warn("employee already assigned to another technician, skipping", map[string]interface{}{
				"technician": tc.Name,
				"employeeId": a.EmployeeID,
			})
		default:
			seen[emp.ID] = true
			a.EmployeeName = emp.FullName()
			a.Active = true
			resolved = append(resolved, ranked{
				tech:  models.Technician{ID: emp.ID, Name: tc.Name, Active: true, Priority: tc.Priority},
				order: i,
			})
		}
		out.Assignments = append(out.Assignments, a)
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].tech.Priority != resolved[j].tech.Priority {
			return resolved[i].tech.Priority < resolved[j].tech.Priority
		}
		return resolved[i].order < resolved[j].order
	})
	out.Technicians = make([]models.Technician, 0, len(resolved))
	for _, r := range resolved {
		out.Technicians = append(out.Technicians, r.tech)
	}

	if dirty {
		h.saveMatches(ctx, matches)
	}
	return out
}

// match returns the first active employee, by ID, whose full name contains
// any of the patterns. The technician name itself is the fallback pattern.
func (h *Handler) match(name string, patterns []string, employees []models.Employee) string {
	if len(patterns) == 0 {
		patterns = []string{name}
	}

	var candidates []models.Employee
	for _, e := range employees {
		if !e.Active {
			continue
		}
		full := strings.ToLower(e.FullName())
		for _, p := range patterns {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" && strings.Contains(full, p) {
				candidates = append(candidates, e)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	if len(candidates) > 1 {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.FullName()
		}
		h.logger.Warn("ambiguous technician name match, using first by id", map[string]interface{}{
			"technician": name,
			"candidates": names,
			"employeeId": candidates[0].ID,
		})
	}
	return candidates[0].ID
}

func (h *Handler) allActive(employees []models.Employee) *Output {
	active := make([]models.Employee, 0, len(employees))
	for _, e := range employees {
		if e.Active {
			active = append(active, e)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].FullName() != active[j].FullName() {
			return active[i].FullName() < active[j].FullName()
		}
		return active[i].ID < active[j].ID
	})

	out := &Output{Technicians: make([]models.Technician, 0, len(active))}
	for i, e := range active {
		out.Technicians = append(out.Technicians, models.Technician{
			ID:       e.ID,
			Name:     e.FullName(),
			Active:   true,
			Priority: i + 1,
		})
		out.Assignments = append(out.Assignments, Assignment{
			Name:         e.FullName(),
			EmployeeID:   e.ID,
			EmployeeName: e.FullName(),
			Source:       SourceRoster,
			Active:       true,
		})
	}
	return out
}

func (h *Handler) loadMatches(ctx context.Context) map[string]string {
	matches := make(map[string]string)
	if h.cache == nil {
		return matches
	}
	cached, ok, err := cache.GetJSON[map[string]string](ctx, h.cache, identityKey)
	if err != nil {
		h.logger.Warn("identity cache read failed", map[string]interface{}{"error": err.Error()})
		return matches
	}
	if ok {
		for k, v := range cached {
			matches[k] = v
		}
	}
	return matches
}

func (h *Handler) saveMatches(ctx context.Context, matches map[string]string) {
	if h.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, h.cache, identityKey, matches, h.config.IdentityTTL); err != nil {
		h.logger.Warn("identity cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
