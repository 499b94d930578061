package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capacity-engine/internal/common/config"
)

func TestNoopObservability_DoesNotPanic(t *testing.T) {
	o := NewNoop()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		o.RecordCalculation(ctx, "NEXT_DAY", 15*time.Millisecond)
		o.RecordFallback(ctx, "service_degraded")
		o.Shutdown()
	})
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(config.TracingConfig{Enabled: false}, "capacityd", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_InProcess(t *testing.T) {
	shutdown, err := InitTracing(config.TracingConfig{Enabled: true, SampleRatio: 1}, "capacityd", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
