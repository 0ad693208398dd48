package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"sitemonitor/internal/pkg/logger"
	"sitemonitor/internal/pkg/metrics"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half-open"
	StateOpen     State = "open"
)

// Gauge value exported for each state.
func (s State) metricValue() float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	}
	return 0
}

// Stops calling a notification channel after repeated failures and lets a
// single trial call through once the reset timeout has passed.
type CircuitBreaker struct {
	mutex            sync.Mutex
	failureCount     int
	lastFailure      time.Time
	resetTimeout     time.Duration
	failureThreshold int
	channel          string
	state            State
	now              func() time.Time
}

func NewCircuitBreaker(channel string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	cb := &CircuitBreaker{
		channel:          channel,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
		now:              time.Now,
	}

	metrics.CircuitBreakerState.WithLabelValues(channel).Set(0)

	return cb
}

func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	metrics.CircuitBreakerState.WithLabelValues(cb.channel).Set(s.metricValue())
}

// Runs fn unless the circuit is open. While half-open, only one trial
// call is let through at a time.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	cb.mutex.Lock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.resetTimeout {
			cb.mutex.Unlock()
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		logger.Log.Info("Circuit half-open, allowing test request",
			zap.String("channel", cb.channel))
	case StateHalfOpen:
		// A trial call is already in flight.
		cb.mutex.Unlock()
		return ErrCircuitOpen
	}

	cb.mutex.Unlock()

	err := fn(ctx)

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastFailure = cb.now()

		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.setState(StateOpen)
			logger.Log.Warn("Circuit opened due to failures",
				zap.String("channel", cb.channel),
				zap.Int("failures", cb.failureCount),
				zap.Time("until", cb.lastFailure.Add(cb.resetTimeout)))
		}

		return err
	}

	if cb.state == StateHalfOpen {
		logger.Log.Info("Circuit closed after successful test",
			zap.String("channel", cb.channel))
	}
	cb.failureCount = 0
	cb.setState(StateClosed)

	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}
