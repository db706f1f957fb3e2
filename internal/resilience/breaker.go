// Package resilience provides reliability patterns for calls to the LLM gateway.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is rejecting calls
// while the gateway cools down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State describes the breaker's current mode.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Breaker guards the LLM gateway against cascading failures. Consecutive
// errors past maxFailures open the circuit for the cooldown period; after
// that a single probe call is let through, and its outcome decides whether
// the circuit closes again or re-opens.
type Breaker struct {
	mu          sync.Mutex
	mode        State
	consecutive int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	probing     bool
	clock       func() time.Time
}

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and allows a probe after the cooldown elapses.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		mode:        StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		clock:       time.Now,
	}
}

// State reports the breaker's current mode.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// Execute runs fn unless the circuit is open. While half-open, only one
// probe runs at a time; concurrent callers get ErrCircuitOpen until the
// probe settles.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.settle(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.mode {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clock().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.mode = StateHalfOpen
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	}
	return ErrCircuitOpen
}

func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err != nil {
		b.consecutive++
		if b.mode == StateHalfOpen || b.consecutive >= b.maxFailures {
			b.mode = StateOpen
			b.openedAt = b.clock()
		}
		return
	}
	b.consecutive = 0
	b.mode = StateClosed
}
