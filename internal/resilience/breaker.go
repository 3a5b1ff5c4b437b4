// Package resilience guards calls to snapshot stores and brokers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State of a Breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker opens after maxFailures consecutive failures and rejects calls
// until timeout elapses. It then lets one probe through; the probe's
// outcome closes or reopens the circuit.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	probing     bool
	benign      func(error) bool
	now         func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithBenign marks errors that report a caller problem rather than an
// unhealthy dependency, e.g. not-found lookups. They reset the failure count.
func WithBenign(fn func(error) bool) Option {
	return func(b *Breaker) { b.benign = fn }
}

// NewBreaker creates a closed breaker.
func NewBreaker(maxFailures int, timeout time.Duration, opts ...Option) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	b := &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		benign:      func(error) bool { return false },
		now:         time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allowRequest() {
		return ErrCircuitOpen
	}
	err := fn()
	b.record(err)
	return err
}

// ExecuteContext is Execute for context-bound calls. A cancelled context
// is returned without touching the breaker.
func (b *Breaker) ExecuteContext(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.allowRequest() {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		b.mu.Lock()
		b.probing = false
		b.mu.Unlock()
		return err
	}
	b.record(err)
	return err
}

// State reports the current state, moving open to half-open once the
// timeout has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.timeout {
		b.state = StateHalfOpen
	}
	return b.state
}

func (b *Breaker) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.timeout {
			return false
		}
		b.state = StateHalfOpen
	}
	if b.state == StateHalfOpen {
		if b.probing {
			return false
		}
		b.probing = true
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if err == nil || b.benign(err) {
		b.failures = 0
		b.state = StateClosed
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}
