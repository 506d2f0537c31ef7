package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Outcome classifies one failure for retry and breaker accounting.
type Outcome struct {
	Retryable     bool
	RecordFailure bool
}

type Classifier func(err error) Outcome

// Guard wraps calls to a single external dependency with classifier-driven
// retries and one circuit breaker. Bind one guard per dependency at
// construction; the classifier decides which failures are worth repeating
// and which should trip the breaker.
type Guard struct {
	name     string
	cfg      Config
	classify Classifier
	breaker  *gobreaker.CircuitBreaker[any]
}

func NewGuard(name string, cfg Config, classify Classifier) *Guard {
	if classify == nil {
		classify = func(error) Outcome {
			return Outcome{RecordFailure: true}
		}
	}
	g := &Guard{
		name:     name,
		cfg:      cfg.normalize(),
		classify: classify,
	}
	if g.cfg.BreakerEnabled {
		g.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        name,
			MaxRequests: g.cfg.BreakerHalfOpenMaxCalls,
			Timeout:     g.cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < g.cfg.BreakerMinRequests {
					return false
				}
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= g.cfg.BreakerFailureRatio
			},
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				return !g.classify(err).RecordFailure
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit_breaker_state_change", "dependency", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return g
}

func (g *Guard) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if g.breaker == nil {
		return g.retry(ctx, operation, fn)
	}
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, g.retry(ctx, operation, fn)
	})
	return err
}

func (g *Guard) retry(ctx context.Context, operation string, fn func(context.Context) error) error {
	backoff := g.cfg.RetryInitialBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !g.classify(err).Retryable || attempt == g.cfg.RetryMaxAttempts {
			return err
		}

		wait := backoff
		if wait > g.cfg.RetryMaxBackoff {
			wait = g.cfg.RetryMaxBackoff
		}
		slog.Warn("retry_attempt",
			"dependency", g.name,
			"operation", operation,
			"attempt", attempt,
			"max_attempts", g.cfg.RetryMaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * g.cfg.RetryMultiplier)
		if backoff > g.cfg.RetryMaxBackoff {
			backoff = g.cfg.RetryMaxBackoff
		}
	}
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
