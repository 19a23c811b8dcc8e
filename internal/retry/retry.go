package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"auction-market/internal/marketerrors"
)

// Strategy computes the pause before the next attempt.
type Strategy interface {
	Duration(attempt int, start time.Duration) time.Duration
}

type exponential struct{}

func (exponential) Duration(attempt int, start time.Duration) time.Duration {
	return time.Duration(int64(math.Pow(2, float64(attempt)))) * start
}

type linear struct{}

func (linear) Duration(attempt int, start time.Duration) time.Duration {
	return time.Duration(attempt+1) * start
}

// Exponential doubles the pause after every attempt.
var Exponential Strategy = exponential{}

// Linear grows the pause by start after every attempt.
var Linear Strategy = linear{}

// Policy bounds how often a conflicting write is retried.
type Policy struct {
	Attempts int
	Start    time.Duration
	Limit    time.Duration
	Strategy Strategy
}

// DefaultPolicy retries five times starting at 1ms, capped at 50ms.
func DefaultPolicy() Policy {
	return Policy{Attempts: 5, Start: time.Millisecond, Limit: 50 * time.Millisecond, Strategy: Exponential}
}

func (p Policy) pause(attempt int) time.Duration {
	s := p.Strategy
	if s == nil {
		s = Exponential
	}
	d := s.Duration(attempt, p.Start)
	if p.Limit > 0 && d > p.Limit {
		d = p.Limit
	}
	return d
}

// Do runs fn until it succeeds, fails with an error other than
// marketerrors.ErrConflict, or the attempts are used up. onConflict, if not
// nil, is called before every retry. The last conflict is returned wrapped so
// callers can still match it with errors.Is.
func Do(ctx context.Context, p Policy, onConflict func(attempt int), fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil || !errors.Is(err, marketerrors.ErrConflict) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		if onConflict != nil {
			onConflict(attempt + 1)
		}
		if werr := wait(ctx, p.pause(attempt)); werr != nil {
			return werr
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	sleepCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	<-sleepCtx.Done()
	if errors.Is(sleepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil
	}
	return ctx.Err()
}
