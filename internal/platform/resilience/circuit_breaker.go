package resilience

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// CircuitBreaker guards the football data provider. After FailureThreshold
// consecutive failures it rejects calls for OpenTimeout, then admits up to
// HalfOpenMaxReq probes; that many successes close it again, one failure reopens it.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	openedAt  time.Time
	inFlight  int
	successes int
	rejected  int64
}

// CircuitSnapshot is a point-in-time view for status endpoints.
type CircuitSnapshot struct {
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	OpenedAt            *time.Time   `json:"opened_at,omitempty"`
	Rejected            int64        `json:"rejected"`
}

// NewCircuitBreaker returns nil for a disabled config; a nil breaker runs every call.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	return &CircuitBreaker{
		cfg:   cfg.normalized(),
		now:   time.Now,
		state: CircuitStateClosed,
	}
}

// Execute runs fn when the breaker allows it and records the outcome. Errors for
// which countsAsFailure returns false reach the caller but count as a success,
// so a 4xx from the provider never trips the breaker.
func (b *CircuitBreaker) Execute(fn func() error, countsAsFailure func(error) bool) error {
	if b == nil {
		return fn()
	}
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	if err != nil && (countsAsFailure == nil || countsAsFailure(err)) {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return err
}

func (b *CircuitBreaker) Allow() error {
	var err error
	b.transition(func() {
		if b.state == CircuitStateOpen {
			if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
				b.rejected++
				err = ErrCircuitOpen
				return
			}
			b.enter(CircuitStateHalfOpen)
		}
		if b.state == CircuitStateHalfOpen {
			if b.inFlight >= b.cfg.HalfOpenMaxReq {
				b.rejected++
				err = ErrCircuitOpen
				return
			}
			b.inFlight++
		}
	})
	return err
}

func (b *CircuitBreaker) RecordSuccess() {
	b.transition(func() {
		switch b.state {
		case CircuitStateClosed:
			b.failures = 0
		case CircuitStateHalfOpen:
			b.inFlight = max(b.inFlight-1, 0)
			b.successes++
			if b.successes >= b.cfg.HalfOpenMaxReq && b.inFlight == 0 {
				b.enter(CircuitStateClosed)
			}
		}
	})
}

func (b *CircuitBreaker) RecordFailure() {
	b.transition(func() {
		switch b.state {
		case CircuitStateClosed:
			b.failures++
			if b.failures >= b.cfg.FailureThreshold {
				b.enter(CircuitStateOpen)
			}
		case CircuitStateHalfOpen:
			b.enter(CircuitStateOpen)
		case CircuitStateOpen:
			b.openedAt = b.now()
		}
	})
}

// State reports half_open once the open timeout has elapsed, even before the next Allow.
func (b *CircuitBreaker) State() CircuitState {
	return b.Snapshot().State
}

func (b *CircuitBreaker) Snapshot() CircuitSnapshot {
	if b == nil {
		return CircuitSnapshot{State: CircuitStateClosed}
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	out := CircuitSnapshot{State: b.state, ConsecutiveFailures: b.failures, Rejected: b.rejected}
	if b.state == CircuitStateOpen {
		openedAt := b.openedAt
		out.OpenedAt = &openedAt
		if b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
			out.State = CircuitStateHalfOpen
		}
	}
	return out
}

// transition runs mutate under the lock and reports a state change afterwards.
func (b *CircuitBreaker) transition(mutate func()) {
	b.mu.Lock()
	from := b.state
	mutate()
	to := b.state
	b.mu.Unlock()

	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

func (b *CircuitBreaker) enter(state CircuitState) {
	b.state = state
	b.inFlight = 0
	b.successes = 0
	switch state {
	case CircuitStateOpen:
		b.openedAt = b.now()
	case CircuitStateClosed:
		b.failures = 0
		b.openedAt = time.Time{}
	}
}
