package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen indicates the breaker is refusing calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit. Values below 1 are treated as 1, which makes the breaker
	// trip on the first failing call.
	MaxFailures int
	// ResetAfter is the cooldown before the first half-open probe.
	ResetAfter time.Duration
	// Now is injectable for tests.
	Now func() time.Time
	// OnOpen, when set, is invoked (outside the lock) each time the
	// circuit transitions to open.
	OnOpen func()
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker is a closed/open/half-open circuit breaker. While open it fails
// fast with ErrCircuitOpen; after ResetAfter exactly one probe call is let
// through, and its outcome decides between closing and reopening.
type Breaker struct {
	mu          sync.Mutex
	maxFailures int
	resetAfter  time.Duration
	now         func() time.Time
	onOpen      func()

	state    breakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker constructs a Breaker with sane defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	maxFailures := cfg.MaxFailures
	if maxFailures < 1 {
		maxFailures = 1
	}
	resetAfter := cfg.ResetAfter
	if resetAfter <= 0 {
		resetAfter = 10 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		maxFailures: maxFailures,
		resetAfter:  resetAfter,
		now:         now,
		onOpen:      cfg.OnOpen,
		state:       breakerClosed,
	}
}

// Do runs fn under the breaker. When the circuit is open (or a half-open
// probe is already in flight) fn is not called and ErrCircuitOpen is
// returned.
func (b *Breaker) Do(fn func() error) error {
	if b == nil {
		return fn()
	}

	now := b.now()

	b.mu.Lock()
	switch b.state {
	case breakerOpen:
		if now.Sub(b.openedAt) < b.resetAfter {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = breakerHalfOpen
	case breakerHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	probe := b.state == breakerHalfOpen
	if probe {
		b.probing = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	if probe {
		b.probing = false
	}

	if err == nil {
		b.state = breakerClosed
		b.failures = 0
		b.mu.Unlock()
		return nil
	}

	opened := false
	if probe {
		b.state = breakerOpen
		b.openedAt = now
		b.failures = 0
		opened = true
	} else {
		b.failures++
		if b.failures >= b.maxFailures {
			b.state = breakerOpen
			b.openedAt = now
			opened = true
		}
	}
	b.mu.Unlock()

	if opened && b.onOpen != nil {
		b.onOpen()
	}
	return err
}
