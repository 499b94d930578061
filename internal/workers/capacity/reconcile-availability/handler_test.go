// internal/workers/capacity/reconcile-availability/handler_test.go
package reconcileavailability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capacity-engine/internal/common/config"
	apperrors "capacity-engine/internal/common/errors"
	"capacity-engine/internal/common/logger"
	"capacity-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

const testDate = "2026-10-19" // Monday

func la(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func at(t *testing.T, hour, minute int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, 0, 0, la(t))
}

func ptr(v time.Time) *time.Time { return &v }

func createTestHandler(t *testing.T) *Handler {
	cfg, err := LoadConfig(config.CapacityConfig{
		Timezone:             "America/Los_Angeles",
		BookingCutoffMinutes: 30,
		Slots:                config.DefaultSlots(),
	})
	require.NoError(t, err)
	return NewHandler(cfg, logger.NewTestLogger(t))
}

func createTechnicians() []models.Technician {
	return []models.Technician{
		{ID: "e1", Name: "Nate", Active: true, Priority: 1},
		{ID: "e2", Name: "Nick", Active: true, Priority: 2},
	}
}

func createInput(t *testing.T, now time.Time, jobs ...models.Job) *Input {
	return &Input{
		Date:        testDate,
		Now:         now,
		Technicians: createTechnicians(),
		Jobs:        jobs,
	}
}

func windowByLabel(out *Output, label string) *models.BookingWindow {
	for i := range out.Windows {
		if out.Windows[i].Label == label {
			return &out.Windows[i]
		}
	}
	return nil
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Reconcile_SynthesisesGridWithoutProviderWindows(t *testing.T) {
	h := createTestHandler(t)

	out, err := h.Reconcile(context.Background(), createInput(t, at(t, 7, 0)))
	require.NoError(t, err)

	require.Len(t, out.Windows, 3)
	assert.Equal(t, 0, out.ProviderWindows)
	for _, w := range out.Windows {
		assert.True(t, w.Calculated)
		assert.True(t, w.Available)
		assert.Equal(t, []string{"e1", "e2"}, w.AssignedTechnicianIDs)
	}
	assert.Equal(t, at(t, 9, 0), out.Windows[0].Start)
	assert.Equal(t, at(t, 18, 0), out.LastSlotEnd)
}

func TestHandler_Reconcile_BusyRules(t *testing.T) {
	tests := []struct {
		name    string
		job     models.Job
		busyFor []string
		freeFor []string
	}{
		{
			name: "in progress without end runs out the day",
			job: models.Job{ID: "j1", AssignedTechnicianIDs: []string{"e1"}, WorkStatus: models.WorkStatusInProgress,
				WorkStart: ptr(at(t, 13, 0))},
			busyFor: []string{"midday", "afternoon"},
			freeFor: []string{"morning"},
		},
		{
			name: "finished work blocks only its interval",
			job: models.Job{ID: "j2", AssignedTechnicianIDs: []string{"e1"}, WorkStatus: models.WorkStatusInProgress,
				WorkStart: ptr(at(t, 9, 30)), WorkEnd: ptr(at(t, 11, 0))},
			busyFor: []string{"morning"},
			freeFor: []string{"midday", "afternoon"},
		},
		{
			name: "arrival window overlapping two slots",
			job: models.Job{ID: "j3", AssignedTechnicianIDs: []string{"e1"}, WorkStatus: models.WorkStatusScheduled,
				ArrivalWindow: &models.TimeRange{Start: at(t, 11, 0), End: at(t, 13, 0)}},
			busyFor: []string{"morning", "midday"},
			freeFor: []string{"afternoon"},
		},
		{
			name: "arrival window touching a boundary does not overlap",
			job: models.Job{ID: "j4", AssignedTechnicianIDs: []string{"e1"}, WorkStatus: models.WorkStatusScheduled,
				ArrivalWindow: &models.TimeRange{Start: at(t, 12, 0), End: at(t, 15, 0)}},
			busyFor: []string{"midday"},
			freeFor: []string{"morning", "afternoon"},
		},
		{
			name: "zero length arrival window counts as one minute",
			job: models.Job{ID: "j5", AssignedTechnicianIDs: []string{"e1"}, WorkStatus: models.WorkStatusScheduled,
				ArrivalWindow: &models.TimeRange{Start: at(t, 15, 0), End: at(t, 15, 0)}},
			busyFor: []string{"afternoon"},
			freeFor: []string{"morning", "midday"},
		},
		{
			name: "scheduled interval stands in for arrival window",
			job: models.Job{ID: "j6", AssignedTechnicianIDs: []string{"e1"}, WorkStatus: models.WorkStatusScheduled,
				ScheduledStart: ptr(at(t, 16, 0)), ScheduledEnd: ptr(at(t, 17, 0))},
			busyFor: []string{"afternoon"},
			freeFor: []string{"morning", "midday"},
		},
		{
			name:    "no timing information blocks the whole day",
			job:     models.Job{ID: "j7", AssignedTechnicianIDs: []string{"e1"}, WorkStatus: models.WorkStatusScheduled},
			busyFor: []string{"morning", "midday", "afternoon"},
		},
		{
			name:    "completed jobs do not constrain",
			job:     models.Job{ID: "j8", AssignedTechnicianIDs: []string{"e1"}, WorkStatus: models.WorkStatusCompleted},
			freeFor: []string{"morning", "midday", "afternoon"},
		},
		{
			name:    "canceled jobs do not constrain",
			job:     models.Job{ID: "j9", AssignedTechnicianIDs: []string{"e1"}, WorkStatus: models.WorkStatusCanceled},
			freeFor: []string{"morning", "midday", "afternoon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t)
			out, err := h.Reconcile(context.Background(), createInput(t, at(t, 6, 0), tt.job))
			require.NoError(t, err)

			for _, label := range tt.busyFor {
				w := windowByLabel(out, label)
				require.NotNil(t, w, label)
				assert.NotContains(t, w.AssignedTechnicianIDs, "e1", label)
				assert.Contains(t, w.AssignedTechnicianIDs, "e2", label)
				assert.True(t, w.Available, "e2 keeps %s available", label)
			}
			for _, label := range tt.freeFor {
				w := windowByLabel(out, label)
				require.NotNil(t, w, label)
				assert.Contains(t, w.AssignedTechnicianIDs, "e1", label)
			}
			assert.ElementsMatch(t, tt.busyFor, out.Busy["e1"])
		})
	}
}

func TestHandler_Reconcile_SlotUnavailableWhenEveryoneBusy(t *testing.T) {
	h := createTestHandler(t)
	job := models.Job{ID: "j1", AssignedTechnicianIDs: []string{"e1", "e2"}, WorkStatus: models.WorkStatusScheduled,
		ArrivalWindow: &models.TimeRange{Start: at(t, 9, 0), End: at(t, 10, 0)}}

	out, err := h.Reconcile(context.Background(), createInput(t, at(t, 6, 0), job))
	require.NoError(t, err)

	morning := windowByLabel(out, "morning")
	require.NotNil(t, morning)
	assert.False(t, morning.Available)
	assert.Empty(t, morning.AssignedTechnicianIDs)
}

func TestHandler_Reconcile_ProviderAvailabilityIsOverridden(t *testing.T) {
	h := createTestHandler(t)
	input := createInput(t, at(t, 6, 0), models.Job{
		ID: "j1", AssignedTechnicianIDs: []string{"e1", "e2"}, WorkStatus: models.WorkStatusScheduled,
	})
	input.Windows = []models.BookingWindow{
		{Start: at(t, 9, 0), End: at(t, 12, 0), Date: testDate, Available: true, AssignedTechnicianIDs: []string{"e1"}},
	}

	out, err := h.Reconcile(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 1, out.ProviderWindows)
	assert.Equal(t, 1, out.Overridden)
	morning := windowByLabel(out, "morning")
	require.NotNil(t, morning)
	assert.False(t, morning.Available)
	assert.Len(t, out.Windows, 3, "grid window replaces the provider one")
}

func TestHandler_Reconcile_BookingCutoff(t *testing.T) {
	h := createTestHandler(t)

	// 14:40 is less than 30 minutes before the 15:00 slot
	out, err := h.Reconcile(context.Background(), createInput(t, at(t, 14, 40)))
	require.NoError(t, err)
	assert.Empty(t, out.Windows)
	assert.Len(t, out.CutOff, 3)

	out, err = h.Reconcile(context.Background(), createInput(t, at(t, 14, 30)))
	require.NoError(t, err)
	require.Len(t, out.Windows, 1)
	assert.Equal(t, "afternoon", out.Windows[0].Label)
	assert.Len(t, out.CutOff, 2)
}

func TestHandler_Reconcile_PassesThroughOffGridWindows(t *testing.T) {
	h := createTestHandler(t)
	input := createInput(t, at(t, 6, 0))
	input.Windows = []models.BookingWindow{
		{Start: at(t, 18, 0), End: at(t, 20, 0), Date: testDate, Available: true, AssignedTechnicianIDs: []string{"e2"}},
		{Start: at(t, 6, 10), End: at(t, 7, 0), Date: testDate, Available: true, AssignedTechnicianIDs: []string{"e2"}},
	}

	out, err := h.Reconcile(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, out.Windows, 4, "cut-off pass-through windows are dropped")
	last := out.Windows[3]
	assert.False(t, last.Calculated)
	assert.True(t, last.Available)
	assert.Equal(t, at(t, 18, 0), last.Start)
}

func TestHandler_Reconcile_OffGridWindowsDropBusyTechnicians(t *testing.T) {
	h := createTestHandler(t)
	working := models.Job{ID: "j1", AssignedTechnicianIDs: []string{"e1"}, WorkStatus: models.WorkStatusInProgress,
		WorkStart: ptr(at(t, 10, 0))}
	morningOnly := models.Job{ID: "j2", AssignedTechnicianIDs: []string{"e2"}, WorkStatus: models.WorkStatusScheduled,
		ArrivalWindow: &models.TimeRange{Start: at(t, 9, 0), End: at(t, 11, 0)}}
	input := createInput(t, at(t, 6, 0), working, morningOnly)
	input.Windows = []models.BookingWindow{
		{Start: at(t, 18, 0), End: at(t, 20, 0), Date: testDate, Available: true, AssignedTechnicianIDs: []string{"e1", "e2"}},
		{Start: at(t, 19, 0), End: at(t, 21, 0), Date: testDate, Available: true, AssignedTechnicianIDs: []string{"e1"}},
	}

	out, err := h.Reconcile(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, out.Windows, 5)
	evening, late := out.Windows[3], out.Windows[4]

	assert.Equal(t, []string{"e2"}, evening.AssignedTechnicianIDs, "e1 is on a job until the end of the day")
	assert.True(t, evening.Available)

	assert.Empty(t, late.AssignedTechnicianIDs)
	assert.False(t, late.Available)
	assert.Equal(t, 1, out.Overridden)
}

func TestHandler_Reconcile_UnknownTechnicianIsIgnored(t *testing.T) {
	h := createTestHandler(t)
	job := models.Job{ID: "j1", AssignedTechnicianIDs: []string{"office-1"}, WorkStatus: models.WorkStatusScheduled}

	out, err := h.Reconcile(context.Background(), createInput(t, at(t, 6, 0), job))
	require.NoError(t, err)

	for _, w := range out.Windows {
		assert.Equal(t, []string{"e1", "e2"}, w.AssignedTechnicianIDs)
	}
	assert.NotContains(t, out.Busy, "office-1")
}

func TestHandler_Reconcile_InvalidDate(t *testing.T) {
	h := createTestHandler(t)
	input := createInput(t, at(t, 6, 0))
	input.Date = "19/10/2026"

	_, err := h.Reconcile(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidCapacityRequest))
}

func TestLoadConfig_BadTimezone(t *testing.T) {
	_, err := LoadConfig(config.CapacityConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}
