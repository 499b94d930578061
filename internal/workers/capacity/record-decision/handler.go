// internal/workers/capacity/record-decision/handler.go
package recorddecision

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"capacity-engine/internal/common/logger"
)

const TaskType = "record-decision"

// Recorder persists capacity decisions.
type Recorder interface {
	Record(ctx context.Context, d *Decision) error
}

// Handler fans a decision out to every configured sink. Sink failures are
// logged and joined; they never affect the capacity response.
type Handler struct {
	config *Config
	sinks  map[string]Recorder
	order  []string
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		sinks:  make(map[string]Recorder),
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// AddSink registers a named sink.
func (h *Handler) AddSink(name string, r Recorder) {
	if _, exists := h.sinks[name]; !exists {
		h.order = append(h.order, name)
	}
	h.sinks[name] = r
}

func (h *Handler) Sinks() []string {
	return append([]string(nil), h.order...)
}

func (h *Handler) Record(ctx context.Context, d *Decision) error {
	if len(h.order) == 0 {
		return nil
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	var errs []error
	for _, name := range h.order {
		if err := h.sinks[name].Record(ctx, d); err != nil {
			h.logger.Error("failed to record capacity decision", map[string]interface{}{
				"sink":       name,
				"decisionId": d.ID,
				"date":       d.Date,
				"error":      err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
