package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	breakerMaxRequests = 1
	breakerInterval    = time.Minute
	breakerTimeout     = 15 * time.Second
	breakerTripAfter   = 5
)

var _ Backend = (*BreakerBackend)(nil)

// BreakerBackend guards a remote backend with a circuit breaker so a dead
// Redis or Postgres does not stall every write for the full dial timeout.
// A missing key is a successful call and never counts against the breaker.
type BreakerBackend struct {
	next    Backend
	breaker *gobreaker.CircuitBreaker
}

type getResult struct {
	value string
	ok    bool
}

func NewBreakerBackend(name string, next Backend, logger *zap.Logger) *BreakerBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: breakerMaxRequests,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("State backend breaker changed state",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrEmptyKey) || errors.Is(err, context.Canceled)
		},
	}
	return &BreakerBackend{next: next, breaker: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerBackend) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		value, ok, err := b.next.Get(ctx, key)
		return getResult{value: value, ok: ok}, err
	})
	if err != nil {
		return "", false, breakerError(err)
	}
	r := res.(getResult)
	return r.value, r.ok, nil
}

func (b *BreakerBackend) Set(ctx context.Context, key, value string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Set(ctx, key, value)
	})
	return breakerError(err)
}

// State reports the breaker state, mainly for health checks.
func (b *BreakerBackend) State() gobreaker.State {
	return b.breaker.State()
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
