package fetcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artist-census/utils"
)

type fakeSleeper struct {
	slept []time.Duration
}

func (f *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	return nil
}

func newRunner(s *fakeSleeper) *Runner {
	return &Runner{
		Timeout:  time.Second,
		Cooldown: 30 * time.Second,
		Sleep:    s.Sleep,
		Logger:   utils.NewNopLogger(),
	}
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func sum(_ context.Context, batch []int) (int, error) {
	return len(batch), nil
}

func TestBatches(t *testing.T) {
	got := Batches(seq(120), 100)
	require.Len(t, got, 2)
	assert.Len(t, got[0], 100)
	assert.Len(t, got[1], 20)

	assert.Empty(t, Batches([]int{}, 10))
	assert.Len(t, Batches(seq(3), 0), 3)
}

func TestRunSleepsBetweenBatchesOnly(t *testing.T) {
	s := &fakeSleeper{}
	var committed []int

	stats, err := Run(context.Background(), newRunner(s), "resolve", seq(120), 100, sum,
		func(n int) error {
			committed = append(committed, n)
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, []int{100, 20}, committed)
	assert.Equal(t, Stats{Batches: 2, Items: 120}, stats)
	assert.Equal(t, []time.Duration{30 * time.Second}, s.slept, "one pause between two batches, none after the last")
}

func TestRunInitialDelay(t *testing.T) {
	s := &fakeSleeper{}
	r := newRunner(s)
	r.InitialDelay = time.Minute

	_, err := Run(context.Background(), r, "artists", seq(10), 50, sum, func(int) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Minute}, s.slept)
}

func TestRunEmptyInput(t *testing.T) {
	s := &fakeSleeper{}
	called := false
	stats, err := Run(context.Background(), newRunner(s), "noop", nil, 10, func(context.Context, []int) (int, error) {
		called = true
		return 0, nil
	}, func(int) error { return nil })

	require.NoError(t, err)
	assert.False(t, called)
	assert.Zero(t, stats)
	assert.Empty(t, s.slept)
}

func TestRunDeadlineStopsRun(t *testing.T) {
	s := &fakeSleeper{}
	r := newRunner(s)
	r.Timeout = 50 * time.Millisecond

	var committed []int
	var calls atomic.Int32
	stats, err := Run(context.Background(), r, "resolve", seq(30), 10,
		func(ctx context.Context, batch []int) (int, error) {
			if calls.Add(1) == 2 {
				// a stalled request that ignores its context
				time.Sleep(300 * time.Millisecond)
			}
			return batch[0], nil
		},
		func(first int) error {
			committed = append(committed, first)
			return nil
		})

	require.ErrorIs(t, err, ErrQuotaExhausted)
	var qerr *QuotaError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, 2, qerr.Batch)
	assert.Equal(t, 3, qerr.Batches)
	assert.Equal(t, 1, qerr.Completed)

	assert.Equal(t, []int{0}, committed, "the expired batch is not committed")
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, int32(2), calls.Load(), "no batch after the expired one")
}

func TestRunDeadlineHonouredByFetch(t *testing.T) {
	r := newRunner(&fakeSleeper{})
	r.Timeout = 20 * time.Millisecond

	_, err := Run(context.Background(), r, "tracks", seq(5), 5,
		func(ctx context.Context, _ []int) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
		func(int) error {
			t.Error("commit must not run")
			return nil
		})
	require.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestRunPropagatesFetchErrorWithoutRetry(t *testing.T) {
	boom := errors.New("503")
	calls := 0
	_, err := Run(context.Background(), newRunner(&fakeSleeper{}), "artists", seq(20), 10,
		func(context.Context, []int) (int, error) {
			calls++
			return 0, boom
		},
		func(int) error { return nil })

	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 1, calls)
}

func TestRunCommitError(t *testing.T) {
	bad := errors.New("row width")
	_, err := Run(context.Background(), newRunner(&fakeSleeper{}), "artists", seq(20), 10, sum,
		func(int) error { return bad })
	require.ErrorIs(t, err, bad)
}

func TestRunCommitDoneStopsEarly(t *testing.T) {
	s := &fakeSleeper{}
	calls := 0
	stats, err := Run(context.Background(), newRunner(s), "playlist-artists", seq(30), 10,
		func(ctx context.Context, batch []int) (int, error) {
			calls++
			return sum(ctx, batch)
		},
		func(int) error {
			if calls == 2 {
				return ErrDone
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, Stats{Batches: 2, Items: 20}, stats)
	assert.Len(t, s.slept, 1, "no cooldown after the final batch")
}

func TestRunParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, newRunner(&fakeSleeper{}), "resolve", seq(5), 5,
		func(ctx context.Context, _ []int) (int, error) { return 0, ctx.Err() },
		func(int) error { return nil })

	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrQuotaExhausted)
}
