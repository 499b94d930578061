// internal/common/provider/retry.go
package provider

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newBackOff yields min(initial*factor^n, max) with +/- jitter for each
// retry of one call. It never gives up on its own; the attempt budget and
// the caller's context bound the sequence.
func newBackOff(cfg *Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.Multiplier = cfg.BackoffFactor
	b.MaxInterval = cfg.MaxDelay
	b.RandomizationFactor = cfg.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cacheTTL picks a TTL uniformly in [min,max].
func cacheTTL(cfg *Config, r float64) time.Duration {
	if cfg.CacheMaxTTL <= cfg.CacheMinTTL {
		return cfg.CacheMinTTL
	}
	span := cfg.CacheMaxTTL - cfg.CacheMinTTL
	return cfg.CacheMinTTL + time.Duration(r*float64(span))
}
