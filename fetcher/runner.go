package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artist-census/utils"
)

// ErrQuotaExhausted means a batch ran past its deadline. The catalog stalls
// silently once the request quota is spent, so a batch that cannot finish in
// time is taken as quota exhaustion and the run stops.
var ErrQuotaExhausted = errors.New("fetcher: request quota exhausted")

// ErrDone, returned by a commit, ends the run successfully after that batch.
var ErrDone = errors.New("fetcher: done")

// QuotaError records where a run stopped on an expired batch deadline.
type QuotaError struct {
	Label     string
	Batch     int
	Batches   int
	Completed int
	Timeout   time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: batch %d/%d exceeded %s after %d completed batches: %v",
		e.Label, e.Batch, e.Batches, e.Timeout, e.Completed, ErrQuotaExhausted)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExhausted }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Runner drives batches through a fetch and a commit step. Its zero value
// runs batches without a deadline or pauses.
type Runner struct {
	Timeout      time.Duration
	Cooldown     time.Duration
	InitialDelay time.Duration
	Sleep        SleepFunc
	Logger       *utils.Logger
}

// Stats summarises a finished or interrupted run.
type Stats struct {
	Batches int
	Items   int
}

// Batches splits items into consecutive chunks of at most size.
func Batches[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}

var errDeadline = errors.New("batch deadline exceeded")

// Run fetches items batch by batch. Each fetch gets its own deadline; commit
// runs after a successful fetch and outside that deadline, so nothing is
// written for a batch whose fetch failed. Errors are never retried.
func Run[T, R any](
	ctx context.Context,
	r *Runner,
	label string,
	items []T,
	size int,
	fetch func(ctx context.Context, batch []T) (R, error),
	commit func(R) error,
) (Stats, error) {
	var stats Stats
	batches := Batches(items, size)
	if len(batches) == 0 {
		r.logger().Info("[fetcher] %s: nothing to do", label)
		return stats, nil
	}

	r.logger().Info("[fetcher] %s: %d items in %d batches", label, len(items), len(batches))
	if err := r.sleep(ctx, r.InitialDelay); err != nil {
		return stats, fmt.Errorf("%s: initial delay: %w", label, err)
	}

	for i, batch := range batches {
		n := i + 1
		res, err := runWithDeadline(ctx, r.Timeout, batch, fetch)
		switch {
		case errors.Is(err, errDeadline):
			qerr := &QuotaError{Label: label, Batch: n, Batches: len(batches), Completed: stats.Batches, Timeout: r.Timeout}
			r.logger().Critical("[fetcher] %v", qerr)
			return stats, qerr
		case ctx.Err() != nil:
			return stats, fmt.Errorf("%s: batch %d/%d: %w", label, n, len(batches), ctx.Err())
		case err != nil:
			return stats, fmt.Errorf("%s: batch %d/%d: %w", label, n, len(batches), err)
		}

		err = commit(res)
		done := errors.Is(err, ErrDone)
		if err != nil && !done {
			return stats, fmt.Errorf("%s: commit batch %d/%d: %w", label, n, len(batches), err)
		}
		stats.Batches++
		stats.Items += len(batch)
		r.logger().Info("[fetcher] %s: batch %d/%d done, %d items (%d/%d)",
			label, n, len(batches), len(batch), stats.Items, len(items))
		if done {
			r.logger().Info("[fetcher] %s: target reached, skipping %d batches", label, len(batches)-n)
			return stats, nil
		}

		if n < len(batches) {
			if err := r.sleep(ctx, r.Cooldown); err != nil {
				return stats, fmt.Errorf("%s: cooldown: %w", label, err)
			}
		}
	}
	return stats, nil
}

// runWithDeadline returns as soon as the deadline fires, even if fetch
// ignores its context. The abandoned goroutine's result is dropped.
func runWithDeadline[T, R any](
	ctx context.Context,
	timeout time.Duration,
	batch []T,
	fetch func(ctx context.Context, batch []T) (R, error),
) (R, error) {
	var zero R
	if timeout <= 0 {
		return fetch(ctx, batch)
	}

	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val R
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fetch(bctx, batch)
		done <- result{val: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() == nil && errors.Is(bctx.Err(), context.DeadlineExceeded) {
			return zero, errDeadline
		}
		return res.val, res.err
	case <-bctx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, errDeadline
	}
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) logger() *utils.Logger {
	if r.Logger == nil {
		return utils.NewNopLogger()
	}
	return r.Logger
}
