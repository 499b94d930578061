package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	messages []string
	fields   []map[string]interface{}
}

func (r *recordingLogger) Error(msg string, fields map[string]interface{}) {
	r.messages = append(r.messages, msg)
	r.fields = append(r.fields, fields)
}

func TestHasCode_FindsNestedCode(t *testing.T) {
	open := NewCircuitOpenError("/jobs", stderrors.New("circuit open"))
	calc := NewCalculationFailedError("2026-10-19", fmt.Errorf("jobs: %w", open))

	assert.True(t, HasCode(calc, ErrCodeCapacityCalculationFailed))
	assert.True(t, HasCode(calc, ErrCodeProviderCircuitOpen))
	assert.False(t, HasCode(calc, ErrCodeProviderRateLimited))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodeProviderCircuitOpen))
}

func TestNormalize(t *testing.T) {
	plain := stderrors.New("boom")
	stdErr := Normalize(plain)
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.ErrorIs(t, stdErr, plain)

	original := NewInvalidRequestError("zip")
	assert.Same(t, original, Normalize(fmt.Errorf("wrap: %w", original)))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "UPSTREAM", GetErrorCategory(ErrCodeProviderCircuitOpen))
	assert.Equal(t, "CAPACITY", GetErrorCategory(ErrCodeCapacityCalculationFailed))
	assert.Equal(t, "CACHE", GetErrorCategory(ErrCodeCacheUnavailable))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidCapacityRequest))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeInvalidCapacityRequest))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrCodeProviderCircuitOpen))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrCodeProviderResponseInvalid))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeInternal))
}

func TestErrorHandler_HandleCapacityError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{
			name:   "circuit open is service degraded",
			err:    NewCalculationFailedError("2026-10-19", NewCircuitOpenError("/employees", nil)),
			reason: ReasonServiceDegraded,
		},
		{
			name:   "exhausted retries is temporarily slow",
			err:    NewCalculationFailedError("2026-10-19", NewRetriesExhaustedError("/jobs", 4, stderrors.New("503"))),
			reason: ReasonTemporarilySlow,
		},
		{
			name:   "unknown error is temporarily slow",
			err:    stderrors.New("boom"),
			reason: ReasonTemporarilySlow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			h := NewErrorHandler(log)

			reason := h.HandleCapacityError(tt.err, map[string]interface{}{"date": "2026-10-19"})

			assert.Equal(t, tt.reason, reason)
			require.Len(t, log.fields, 1)
			assert.Equal(t, tt.reason, log.fields[0]["degradedReason"])
			assert.Equal(t, "2026-10-19", log.fields[0]["date"])
		})
	}
}

func TestErrorHandler_LogsErrorMetadata(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)
	err := NewCalculationFailedError("2026-10-19", stderrors.New("boom")).WithMetadata("stage", "fetch")

	h.HandleCapacityError(err, map[string]interface{}{"requestId": "r1"})

	require.Len(t, log.fields, 1)
	assert.Equal(t, "fetch", log.fields[0]["stage"])
	assert.Equal(t, "r1", log.fields[0]["requestId"])
}
