package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"finpulse/pkg/core/llm"
	"finpulse/pkg/core/logging"
)

// recorder replaces real sleeping with a log of requested waits.
type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testPolicy(rec *recorder, jitter time.Duration) Policy {
	p := DefaultPolicy()
	p.Sleep = rec.sleep
	p.Jitter = func(time.Duration) time.Duration { return jitter }
	p.Logger = logging.Discard()
	return p
}

func TestInvokeRetriesTransientThenSucceeds(t *testing.T) {
	rec := &recorder{}
	calls := 0

	got, err := Invoke(context.Background(), testPolicy(rec, 250*time.Millisecond), func(ctx context.Context) (string, error) {
		calls++
		if calls <= 4 {
			return "", genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 5, calls)
	require.Len(t, rec.waits, 4)

	base := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, w := range rec.waits {
		assert.Equal(t, base[i]+250*time.Millisecond, w)
		if i > 0 {
			assert.Greater(t, w, rec.waits[i-1])
		}
	}
}

func TestInvokeRateLimitExhausted(t *testing.T) {
	rec := &recorder{}
	calls := 0

	_, err := Invoke(context.Background(), testPolicy(rec, 0), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("got 429: RESOURCE_EXHAUSTED")
	})

	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.Len(t, rec.waits, 4)

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 5, rl.Attempts)

	var tagged *Error
	require.True(t, errors.As(err, &tagged))
	assert.Equal(t, KindRateLimited, tagged.Kind)

	var tr *TransientError
	assert.False(t, errors.As(err, &tr))
}

func TestInvokeFatalIsNotRetried(t *testing.T) {
	rec := &recorder{}
	calls := 0
	boom := errors.New("invalid argument")

	_, err := Invoke(context.Background(), testPolicy(rec, 0), func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})

	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindFatal, Classify(err))
}

func TestInvokePermanentOverridesMessage(t *testing.T) {
	rec := &recorder{}
	calls := 0

	_, err := Invoke(context.Background(), testPolicy(rec, 0), func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(errors.New("field value 500 rejected"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestInvokeStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultPolicy()
	p.Logger = logging.Discard()
	p.Jitter = func(time.Duration) time.Duration { return 0 }
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	_, err := Invoke(ctx, p, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("rpc failed")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)

	var tr *TransientError
	assert.True(t, errors.As(err, &tr))
}

func TestInvokeOnRetryHook(t *testing.T) {
	rec := &recorder{}
	p := testPolicy(rec, 0)
	p.MaxAttempts = 3

	var seen []Retry
	p.OnRetry = func(r Retry) { seen = append(seen, r) }

	_, err := Invoke(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, fmt.Errorf("upstream: %w", genai.APIError{Code: 500})
	})

	require.Error(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[0].Attempt)
	assert.Equal(t, 2*time.Second, seen[0].Wait)
	assert.Equal(t, KindTransient, seen[1].Kind)
}

func TestRandomJitterBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		j := randomJitter(time.Second)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.LessOrEqual(t, j, time.Second)
	}
	assert.Zero(t, randomJitter(0))
}

func TestInvokeRetriesEmptyReply(t *testing.T) {
	rec := &recorder{}
	calls := 0

	got, err := Invoke(context.Background(), testPolicy(rec, 0), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", fmt.Errorf("assessment call: %w", &llm.ReplyError{Provider: "gemini", Err: llm.ErrEmptyReply})
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.waits)
}

func TestBaseWaitSaturates(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 16*time.Second, p.BaseWait(4))
	for _, retry := range []int{34, 40, 63, 64, 200} {
		w := p.BaseWait(retry)
		assert.Positive(t, w, "retry %d", retry)
		assert.GreaterOrEqual(t, w, p.BaseWait(retry-1), "retry %d", retry)
	}
	p.Jitter = func(time.Duration) time.Duration { return time.Second }
	assert.Positive(t, p.wait(64))
}
