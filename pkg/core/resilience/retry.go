package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

// Retry contains the information passed to Policy.OnRetry before each wait.
type Retry struct {
	Attempt int
	Wait    time.Duration
	Kind    Kind
	Err     error
}

// Policy controls how Invoke retries. The zero value is not usable; start from
// DefaultPolicy.
type Policy struct {
	// MaxAttempts counts the first call, so 5 means at most 4 retries.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	// Deadline caps the whole call including every wait; zero means none.
	Deadline time.Duration

	Sleep    func(ctx context.Context, d time.Duration) error
	Jitter   func(max time.Duration) time.Duration
	Classify func(error) Kind
	OnRetry  func(Retry)
	Logger   *logrus.Entry
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxJitter:   time.Second,
	}
}

const maxWait = time.Duration(math.MaxInt64)

// BaseWait is the backoff before the given retry (1-based), without jitter:
// 2s, 4s, 8s, 16s for the default policy. It saturates instead of overflowing.
func (p Policy) BaseWait(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	shift := retry - 1
	if p.BaseDelay <= 0 {
		return p.BaseDelay
	}
	if shift >= 63 || p.BaseDelay > maxWait>>shift {
		return maxWait
	}
	return p.BaseDelay << shift
}

func (p Policy) wait(retry int) time.Duration {
	jitter := p.Jitter
	if jitter == nil {
		jitter = randomJitter
	}
	base, j := p.BaseWait(retry), jitter(p.MaxJitter)
	if j > 0 && base > maxWait-j {
		return maxWait
	}
	return base + j
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max + 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Invoke runs op until it succeeds, fails fatally, or runs out of attempts.
// Every failure is returned as *Error tagged with the last Kind.
func Invoke[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = Classify
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	log := p.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if p.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Deadline)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		kind := classify(err)
		if !kind.Retryable() || attempt >= p.MaxAttempts {
			return zero, &Error{Kind: kind, Attempts: attempt, Err: err}
		}

		wait := p.wait(attempt)
		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"wait_ms": wait.Milliseconds(),
			"kind":    kind.String(),
			"error":   err.Error(),
		}).Warn("remote call failed, retrying")
		if p.OnRetry != nil {
			p.OnRetry(Retry{Attempt: attempt, Wait: wait, Kind: kind, Err: err})
		}

		if serr := sleep(ctx, wait); serr != nil {
			return zero, &Error{Kind: kind, Attempts: attempt, Err: errors.Join(serr, err)}
		}
	}
}
