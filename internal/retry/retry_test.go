package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ waits []time.Duration }

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 3, Backoff: Exponential(0), Sleep: rec.sleep}

	calls := 0
	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		assert.Equal(t, calls, attempt)
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
}

func TestDoReturnsLastError(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 3, Backoff: Fixed(time.Second), Sleep: rec.sleep}

	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errors.New("still failing")
	})

	require.EqualError(t, err, "still failing")
	assert.Equal(t, 3, calls)
	// no wait after the final attempt
	assert.Len(t, rec.waits, 2)
}

func TestDoStopsOnPermanent(t *testing.T) {
	rec := &recorder{}
	p := Policy{MaxAttempts: 5, Backoff: Fixed(time.Second), Sleep: rec.sleep}
	sentinel := errors.New("bad key")

	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return Permanent(sentinel)
	})

	assert.Same(t, sentinel, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 5,
		Backoff:     Fixed(time.Hour),
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	calls := 0
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		return errors.New("transient")
	})

	require.EqualError(t, err, "transient")
	assert.Equal(t, 1, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExponentialJitterBounds(t *testing.T) {
	b := Exponential(100 * time.Millisecond)
	for attempt := 0; attempt < 3; attempt++ {
		base := time.Duration(1<<attempt) * time.Second
		for i := 0; i < 50; i++ {
			d := b(attempt, nil)
			assert.GreaterOrEqual(t, d, base)
			assert.Less(t, d, base+100*time.Millisecond)
		}
	}
}

func TestWhenSelectsBackoff(t *testing.T) {
	limited := errors.New("429")
	b := When(func(err error) bool { return errors.Is(err, limited) }, Exponential(0), Fixed(time.Second))

	assert.Equal(t, 4*time.Second, b(2, limited))
	assert.Equal(t, time.Second, b(2, errors.New("other")))
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.False(t, IsPermanent(errors.New("x")))
	assert.NoError(t, Permanent(nil))
}
