// internal/workers/capacity/calculate-capacity/state.go
package calculatecapacity

import (
	"sort"
	"strings"
	"time"

	"capacity-engine/internal/models"
)

// dayFacts is everything the state machine looks at.
type dayFacts struct {
	now             time.Time // operating timezone
	target          time.Time // local midnight of the requested date
	providerWindows int
	gridWindows     int
	lastSlotEnd     time.Time
	openTechnicians int
	score           float64
}

func (f dayFacts) isToday() bool {
	y1, m1, d1 := f.now.Date()
	y2, m2, d2 := f.target.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// classify evaluates the rules in priority order; the first match wins.
func classify(cfg *Config, f dayFacts) (models.CapacityState, string) {
	if inEmergencyWindow(cfg, f) {
		return models.StateEmergencyOnly, RuleEmergencyWindow
	}

	if f.isToday() {
		switch f.now.Weekday() {
		case time.Monday, time.Tuesday, time.Wednesday, time.Thursday:
			if f.now.Hour() >= cfg.ExpressCutoffHour {
				return models.StateNextDay, RuleExpressCutoff
			}
		}
	}

	switch {
	case f.providerWindows == 0:
		return models.StateNextDay, RuleNoProviderWindows
	case f.gridWindows == 0:
		return models.StateNextDay, RuleNoBookableWindows
	case !f.lastSlotEnd.IsZero() && !f.now.Before(f.lastSlotEnd):
		return models.StateNextDay, RuleDayOver
	case f.openTechnicians == 0:
		return models.StateNextDay, RuleNoOpenTechnician
	}

	switch {
	case f.score >= cfg.SameDayThreshold:
		return models.StateSameDayFeeWaived, RuleScore
	case f.score >= cfg.LimitedThreshold:
		return models.StateLimitedSameDay, RuleScore
	default:
		return models.StateNextDay, RuleScore
	}
}

// inEmergencyWindow is Friday at or after the express cutoff, or a weekend.
// Dates other than today only look at the weekday.
func inEmergencyWindow(cfg *Config, f dayFacts) bool {
	if !f.isToday() {
		wd := f.target.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	}
	switch f.now.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	case time.Friday:
		return f.now.Hour() >= cfg.ExpressCutoffHour
	}
	return false
}

// scoreTechnicians derives per-technician capacity from reconciled grid
// windows. Pass-through provider windows carry no busy information and
// are left out of the score.
func scoreTechnicians(techs []models.Technician, windows []models.BookingWindow) []models.TechnicianCapacity {
	out := make([]models.TechnicianCapacity, 0, len(techs))
	for _, tech := range techs {
		tc := models.TechnicianCapacity{
			TechnicianID: tech.ID,
			Name:         tech.Name,
			OpenWindows:  []models.BookingWindow{},
		}
		for _, w := range windows {
			if !w.Calculated {
				continue
			}
			minutes := w.Minutes()
			tc.TotalBookableMinutes += minutes
			if contains(w.AssignedTechnicianIDs, tech.ID) {
				tc.OpenWindows = append(tc.OpenWindows, w)
			} else {
				tc.BookedMinutes += minutes
			}
		}
		if tc.TotalBookableMinutes > 0 {
			tc.Score = clamp01(1 - float64(tc.BookedMinutes)/float64(tc.TotalBookableMinutes))
		}
		out = append(out, tc)
	}
	return out
}

// overallScore averages the technicians with a positive score.
func overallScore(techs []models.TechnicianCapacity) float64 {
	var sum float64
	var n int
	for _, t := range techs {
		if t.Score > 0 {
			sum += t.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return clamp01(sum / float64(n))
}

func openTechnicians(techs []models.TechnicianCapacity) int {
	n := 0
	for _, t := range techs {
		if len(t.OpenWindows) > 0 {
			n++
		}
	}
	return n
}

// consolidate groups available windows by (start,end) and lists the known
// technicians free in each, by priority. Slots nobody can take are dropped.
func consolidate(windows []models.BookingWindow, techs []models.Technician) []models.ExpressWindow {
	known := make(map[string]models.Technician, len(techs))
	for _, t := range techs {
		known[t.ID] = t
	}

	type slotKey struct{ start, end int64 }
	index := make(map[slotKey]int)
	var slots []models.ExpressWindow
	seen := make(map[slotKey]map[string]bool)

	for _, w := range windows {
		if !w.Available {
			continue
		}
		key := slotKey{w.Start.UnixNano(), w.End.UnixNano()}
		i, ok := index[key]
		if !ok {
			i = len(slots)
			index[key] = i
			seen[key] = make(map[string]bool)
			slots = append(slots, models.ExpressWindow{Start: w.Start, End: w.End, Technicians: []models.TechnicianRef{}})
		}
		for _, id := range w.AssignedTechnicianIDs {
			tech, ok := known[id]
			if !ok || seen[key][id] {
				continue
			}
			seen[key][id] = true
			slots[i].Technicians = append(slots[i].Technicians, models.TechnicianRef{ID: tech.ID, Name: tech.Name})
		}
	}

	out := make([]models.ExpressWindow, 0, len(slots))
	for _, s := range slots {
		if len(s.Technicians) == 0 {
			continue
		}
		sort.SliceStable(s.Technicians, func(a, b int) bool {
			ta, tb := known[s.Technicians[a].ID], known[s.Technicians[b].ID]
			if ta.Priority != tb.Priority {
				return ta.Priority < tb.Priority
			}
			return ta.Name < tb.Name
		})
		out = append(out, s)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].Start.Equal(out[b].Start) {
			return out[a].Start.Before(out[b].Start)
		}
		return out[a].End.Before(out[b].End)
	})
	return out
}

// expressEligibility applies the ZIP tier rules. No ZIP is eligible; an
// unknown ZIP is not. NEXT_DAY is never eligible.
func expressEligibility(cfg *Config, state models.CapacityState, score float64, zip string) (bool, string) {
	if state == models.StateNextDay {
		return false, cfg.ZipTiers[zip]
	}
	if zip == "" {
		return true, ""
	}
	tier, ok := cfg.ZipTiers[zip]
	if !ok {
		return false, ""
	}
	switch tier {
	case Tier1:
		return true, tier
	case Tier2:
		return score >= 0.5, tier
	case Tier3:
		return score >= 0.7, tier
	}
	return false, tier
}

func uiCopyKey(cfg *Config, state models.CapacityState) string {
	key := strings.ToLower(string(state))
	if v, ok := cfg.UICopy[key]; ok && v != "" {
		return v
	}
	return key
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
