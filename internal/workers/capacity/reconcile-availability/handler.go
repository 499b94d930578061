// internal/workers/capacity/reconcile-availability/handler.go
package reconcileavailability

import (
	"context"
	"fmt"
	"sort"
	"time"

	apperrors "capacity-engine/internal/common/errors"
	"capacity-engine/internal/common/logger"
	"capacity-engine/internal/models"
)

const TaskType = "reconcile-availability"

// Handler recomputes slot availability from job state. The provider's
// available flag is only trusted for windows off the standard grid.
type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

type gridSlot struct {
	label string
	start time.Time
	end   time.Time
}

func (h *Handler) Reconcile(_ context.Context, input *Input) (*Output, error) {
	day, err := time.ParseInLocation("2006-01-02", input.Date, h.config.Location)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("invalid date %q", input.Date))
	}

	grid := h.grid(day)
	busy := h.busySlots(input, grid)
	cutoff := input.Now.Add(h.config.BookingCutoff)

	out := &Output{
		ProviderWindows: len(input.Windows),
		Busy:            make(map[string][]string),
	}
	if len(grid) > 0 {
		out.LastSlotEnd = grid[len(grid)-1].end
	}

	onGrid := make(map[int]bool)
	for i, slot := range grid {
		w := models.BookingWindow{
			Start:                 slot.start,
			End:                   slot.end,
			Date:                  input.Date,
			Label:                 slot.label,
			AssignedTechnicianIDs: []string{},
			Calculated:            true,
		}
		for _, tech := range input.Technicians {
			if !tech.Active {
				continue
			}
			if busy[tech.ID][i] {
				out.Busy[tech.ID] = append(out.Busy[tech.ID], slot.label)
				continue
			}
			w.AssignedTechnicianIDs = append(w.AssignedTechnicianIDs, tech.ID)
		}
		w.Available = len(w.AssignedTechnicianIDs) > 0

		for j, pw := range input.Windows {
			if pw.Start.Equal(slot.start) && pw.End.Equal(slot.end) {
				onGrid[j] = true
				if pw.Available != w.Available {
					out.Overridden++
				}
			}
		}

		if slot.start.Before(cutoff) {
			out.CutOff = append(out.CutOff, w)
			continue
		}
		out.Windows = append(out.Windows, w)
	}

	var passThrough []models.BookingWindow
	for j, pw := range input.Windows {
		if onGrid[j] {
			continue
		}
		if pw.Start.Before(cutoff) {
			continue
		}
		pw.Calculated = false
		h.dropBusy(&pw, input.Jobs, out)
		passThrough = append(passThrough, pw)
	}
	sort.SliceStable(passThrough, func(i, j int) bool { return passThrough[i].Start.Before(passThrough[j].Start) })
	if len(passThrough) > 0 {
		h.logger.Warn("provider windows outside the standard grid passed through", map[string]interface{}{
			"date":  input.Date,
			"count": len(passThrough),
		})
	}
	out.Windows = append(out.Windows, passThrough...)

	h.logger.Debug("availability reconciled", map[string]interface{}{
		"date":            input.Date,
		"providerWindows": out.ProviderWindows,
		"windows":         len(out.Windows),
		"cutOff":          len(out.CutOff),
		"overridden":      out.Overridden,
	})
	return out, nil
}

// dropBusy removes from an off-grid provider window every technician whose
// jobs block its interval, applying the same busy rules as the grid.
func (h *Handler) dropBusy(w *models.BookingWindow, jobs []models.Job, out *Output) {
	span := []gridSlot{{label: w.Label, start: w.Start, end: w.End}}
	blocked := make(map[string]bool)
	for _, job := range jobs {
		if !job.IsActive() || len(blockedSlots(job, span)) == 0 {
			continue
		}
		for _, id := range job.AssignedTechnicianIDs {
			blocked[id] = true
		}
	}
	if len(blocked) == 0 {
		return
	}

	free := make([]string, 0, len(w.AssignedTechnicianIDs))
	for _, id := range w.AssignedTechnicianIDs {
		if blocked[id] {
			continue
		}
		free = append(free, id)
	}
	if len(free) == len(w.AssignedTechnicianIDs) {
		return
	}

	h.logger.Debug("busy technicians removed from provider window", map[string]interface{}{
		"start":   w.Start,
		"end":     w.End,
		"removed": len(w.AssignedTechnicianIDs) - len(free),
	})
	w.AssignedTechnicianIDs = free
	if len(free) == 0 && w.Available {
		w.Available = false
		out.Overridden++
	}
}

func (h *Handler) grid(day time.Time) []gridSlot {
	y, m, d := day.Date()
	loc := h.config.Location
	slots := make([]gridSlot, 0, len(h.config.Slots))
	for _, s := range h.config.Slots {
		slots = append(slots, gridSlot{
			label: s.Label,
			start: time.Date(y, m, d, s.StartMinute/60, s.StartMinute%60, 0, 0, loc),
			end:   time.Date(y, m, d, s.EndMinute/60, s.EndMinute%60, 0, 0, loc),
		})
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].start.Before(slots[j].start) })
	return slots
}

// busySlots returns, per technician ID, the grid slot indexes they cannot take.
func (h *Handler) busySlots(input *Input, grid []gridSlot) map[string]map[int]bool {
	known := make(map[string]bool, len(input.Technicians))
	for _, t := range input.Technicians {
		known[t.ID] = true
	}

	busy := make(map[string]map[int]bool)
	mark := func(techID string, idx int) {
		if busy[techID] == nil {
			busy[techID] = make(map[int]bool)
		}
		busy[techID][idx] = true
	}

	for _, job := range input.Jobs {
		if !job.IsActive() || len(job.AssignedTechnicianIDs) == 0 {
			continue
		}

		slots := blockedSlots(job, grid)
		for _, techID := range job.AssignedTechnicianIDs {
			if !known[techID] {
				h.logger.Warn("job references unknown technician, treating as unavailable", map[string]interface{}{
					"jobId":        job.ID,
					"technicianId": techID,
				})
				continue
			}
			for _, idx := range slots {
				mark(techID, idx)
			}
		}
	}
	return busy
}

// blockedSlots applies the busy rules to a single job:
//   - work started, not finished: every slot ending after the start
//   - work started and finished: slots overlapping the work interval
//   - arrival window: slots overlapping it
//   - scheduled start and end: slots overlapping them
//   - otherwise the whole day
func blockedSlots(job models.Job, grid []gridSlot) []int {
	var interval *models.TimeRange
	switch {
	case job.WorkStart != nil && job.WorkEnd == nil:
		var out []int
		for i, s := range grid {
			if s.end.After(*job.WorkStart) {
				out = append(out, i)
			}
		}
		return out
	case job.WorkStart != nil && job.WorkEnd != nil:
		interval = &models.TimeRange{Start: *job.WorkStart, End: *job.WorkEnd}
	case job.ArrivalWindow != nil:
		interval = job.ArrivalWindow
	case job.ScheduledStart != nil && job.ScheduledEnd != nil:
		interval = &models.TimeRange{Start: *job.ScheduledStart, End: *job.ScheduledEnd}
	default:
		out := make([]int, len(grid))
		for i := range grid {
			out[i] = i
		}
		return out
	}

	r := *interval
	if !r.End.After(r.Start) {
		r.End = r.Start.Add(time.Minute)
	}
	var out []int
	for i, s := range grid {
		if r.Overlaps(s.start, s.end) {
			out = append(out, i)
		}
	}
	return out
}
