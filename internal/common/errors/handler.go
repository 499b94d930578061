// internal/common/errors/handler.go
package errors

// Degraded reasons surfaced to the booking page in fallback payloads.
const (
	ReasonServiceDegraded = "service_degraded"
	ReasonTemporarilySlow = "temporarily_slow"
)

// ErrorHandler turns calculation failures into log entries and a
// client-facing degraded reason.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleCapacityError logs err and returns the degraded reason for it.
func (h *ErrorHandler) HandleCapacityError(err error, fields map[string]interface{}) string {
	stdErr := Normalize(err)
	reason := DegradedReason(err)

	logFields := map[string]interface{}{
		"errorCode":      string(stdErr.Code),
		"errorCategory":  GetErrorCategory(stdErr.Code),
		"message":        stdErr.Message,
		"details":        stdErr.Details,
		"retryable":      stdErr.Retryable,
		"degradedReason": reason,
	}
	for k, v := range stdErr.Metadata {
		logFields[k] = v
	}
	for k, v := range fields {
		logFields[k] = v
	}
	h.logger.Error("capacity calculation failed, serving fallback", logFields)

	return reason
}

// DegradedReason distinguishes a tripped breaker ("service degraded")
// from every other upstream failure ("temporarily slow").
func DegradedReason(err error) string {
	if HasCode(err, ErrCodeProviderCircuitOpen) {
		return ReasonServiceDegraded
	}
	return ReasonTemporarilySlow
}
