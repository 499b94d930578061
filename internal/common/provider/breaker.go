// internal/common/provider/breaker.go
package provider

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"capacity-engine/internal/common/clock"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerHalfOpen:
		return "half-open"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) BreakerState {
	switch s {
	case gobreaker.StateHalfOpen:
		return BreakerHalfOpen
	case gobreaker.StateOpen:
		return BreakerOpen
	default:
		return BreakerClosed
	}
}

var ErrCircuitOpen = errors.New("circuit open")

// Transition describes a breaker state change.
type Transition struct {
	From     BreakerState
	To       BreakerState
	At       time.Time
	Failures int
}

// Outcome settles one admitted call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	// OutcomeAbandoned is a call the caller gave up on before the upstream
	// proved healthy or unhealthy.
	OutcomeAbandoned
)

// Breaker is a consecutive-failure circuit breaker over gobreaker's
// two-step API. After the cooldown a single trial call is admitted and
// concurrent callers fail fast until it settles.
type Breaker struct {
	cb       *gobreaker.TwoStepCircuitBreaker[struct{}]
	clock    clock.Clock
	failures atomic.Int64
}

// NewBreaker builds a breaker that opens after threshold consecutive
// failures. onChange runs synchronously on every transition and must not
// call back into the breaker.
func NewBreaker(threshold int, cooldown time.Duration, clk clock.Clock, onChange func(Transition)) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if clk == nil {
		clk = clock.NewReal()
	}

	b := &Breaker{clock: clk}
	b.cb = gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "provider",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if onChange == nil {
				return
			}
			onChange(Transition{
				From:     fromGobreaker(from),
				To:       fromGobreaker(to),
				At:       b.clock.Now(),
				Failures: int(b.failures.Load()),
			})
		},
	})
	return b
}

// Allow admits a call or returns ErrCircuitOpen. The returned func must be
// called exactly once with the call's outcome.
func (b *Breaker) Allow() (func(Outcome), error) {
	trial := b.cb.State() == gobreaker.StateHalfOpen
	done, err := b.cb.Allow()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	return func(o Outcome) {
		switch o {
		case OutcomeSuccess:
			b.failures.Store(0)
			done(true)
		case OutcomeFailure:
			b.failures.Add(1)
			done(false)
		case OutcomeAbandoned:
			// an abandoned trial re-opens; otherwise the count is untouched
			if trial {
				done(false)
			}
		}
	}, nil
}

// State reports the effective state: an open breaker whose cooldown has
// elapsed reads as half-open.
func (b *Breaker) State() BreakerState {
	return fromGobreaker(b.cb.State())
}
