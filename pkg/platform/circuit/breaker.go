// Package circuit implements a small consecutive-failure circuit breaker.
//
// The breaker opens after a run of failures and closes again after a run of
// successes. While open, Allow admits a single probe once the cooldown has
// elapsed so the caller can observe whether the dependency recovered.
package circuit

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by callers that refuse work while the breaker is open.
var ErrOpen = errors.New("circuit open")

// State is the breaker position.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 1
	defaultCooldown         = 10 * time.Second
)

// StateChange reports a transition caused by the last recorded outcome.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	lastProbe time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New builds a closed breaker.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		cooldown:         defaultCooldown,
		now:              time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Allow reports whether a call to the protected dependency should be made.
// When open, at most one probe per cooldown window is admitted.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return true
	}
	now := b.now()
	if now.Sub(b.openedAt) < b.cooldown || now.Sub(b.lastProbe) < b.cooldown {
		return false
	}
	b.lastProbe = now
	return true
}

// RecordFailure counts a failure. useFallback is true when the breaker is
// open after recording.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.successes = 0
	if b.state == StateOpen {
		return true, StateChange{}
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
		b.lastProbe = time.Time{}
		return true, StateChange{Opened: true}
	}
	return false, StateChange{}
}

// RecordSuccess counts a success. usePrimary is true when the breaker is
// closed after recording.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state == StateClosed {
		return true, StateChange{}
	}
	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.successes = 0
		return true, StateChange{Closed: true}
	}
	return false, StateChange{}
}

// Reset closes the breaker and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}
