package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewBackOff_Sequence(t *testing.T) {
	cfg := createTestConfig("")

	b := newBackOff(cfg)
	var got []time.Duration
	for i := 0; i < 6; i++ {
		got = append(got, b.NextBackOff())
	}

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second,
	}, got)
}

func TestNewBackOff_JitterBounds(t *testing.T) {
	cfg := createTestConfig("")
	cfg.Jitter = 0.1

	for i := 0; i < 50; i++ {
		b := newBackOff(cfg)
		first := b.NextBackOff()
		assert.GreaterOrEqual(t, first, 900*time.Millisecond)
		assert.LessOrEqual(t, first, 1100*time.Millisecond)

		second := b.NextBackOff()
		assert.GreaterOrEqual(t, second, 1800*time.Millisecond)
		assert.LessOrEqual(t, second, 2200*time.Millisecond)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

	d, ok := parseRetryAfter("30", now)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, d)

	d, ok = parseRetryAfter(now.Add(45*time.Second).Format(time.RFC1123), now)
	assert.True(t, ok)
	assert.Equal(t, 45*time.Second, d)

	d, ok = parseRetryAfter(now.Add(-time.Minute).Format(time.RFC1123), now)
	assert.True(t, ok)
	assert.Zero(t, d)

	_, ok = parseRetryAfter("", now)
	assert.False(t, ok)
	_, ok = parseRetryAfter("soon", now)
	assert.False(t, ok)
	_, ok = parseRetryAfter("-3", now)
	assert.False(t, ok)
}

func TestCacheTTL_WithinBounds(t *testing.T) {
	cfg := createTestConfig("")
	assert.Equal(t, 60*time.Second, cacheTTL(cfg, 0))
	assert.Equal(t, 75*time.Second, cacheTTL(cfg, 0.5))
	assert.Less(t, cacheTTL(cfg, 0.9999), 90*time.Second+time.Nanosecond)
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
