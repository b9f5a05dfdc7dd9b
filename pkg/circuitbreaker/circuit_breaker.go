package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the state of a circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

const defaultHalfOpenMaxCalls = 1

// CircuitBreaker stops calling a failing upstream for a cooldown period.
// After maxFailures consecutive failures it opens; once the cooldown elapses a
// single probe is let through and its result closes or reopens the circuit.
type CircuitBreaker struct {
	name             string
	maxFailures      uint32
	cooldown         time.Duration
	halfOpenMaxCalls uint32
	isFailure        func(error) bool
	now              func() time.Time

	mu            sync.Mutex
	state         State
	failures      uint32
	openedAt      time.Time
	halfOpenCalls uint32

	logger *logrus.Logger
}

// New creates a circuit breaker that counts every error as a failure
func New(name string, maxFailures uint32, cooldown time.Duration, logger *logrus.Logger) *CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CircuitBreaker{
		name:             name,
		maxFailures:      maxFailures,
		cooldown:         cooldown,
		halfOpenMaxCalls: defaultHalfOpenMaxCalls,
		isFailure:        func(err error) bool { return err != nil },
		now:              time.Now,
		state:            StateClosed,
		logger:           logger,
	}
}

// WithFailurePredicate restricts which errors count toward tripping the circuit.
// Errors the predicate rejects are still returned to the caller.
func (cb *CircuitBreaker) WithFailurePredicate(isFailure func(error) bool) *CircuitBreaker {
	cb.isFailure = func(err error) bool { return err != nil && isFailure(err) }
	return cb
}

// Execute runs fn unless the circuit is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allowRequest() {
		return &CircuitBreakerError{Name: cb.name, State: StateOpen}
	}

	err := fn(ctx)
	if cb.isFailure(err) {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 1
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"state":           StateHalfOpen.String(),
		}).Info("Circuit breaker probing upstream")
		return true
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return false
		}
		cb.halfOpenCalls++
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"state":           StateClosed.String(),
		}).Info("Circuit breaker closed after successful recovery")
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCalls = 0
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

// trip must be called with mu held
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.halfOpenCalls = 0
	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"failures":        cb.failures,
		"state":           StateOpen.String(),
	}).Warn("Circuit breaker opened due to failures")
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CircuitBreakerError is returned by Execute while the circuit is open
type CircuitBreakerError struct {
	Name  string
	State State
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

// IsCircuitBreakerError checks if an error is a circuit breaker error
func IsCircuitBreakerError(err error) bool {
	_, ok := err.(*CircuitBreakerError)
	return ok
}
