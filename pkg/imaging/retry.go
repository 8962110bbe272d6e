package imaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tarndt/rawblk/pkg/asyncio"
	"github.com/tarndt/rawblk/pkg/sectorio"
)

const (
	//DefaultWriteRetries is how many times a failed write is retried
	DefaultWriteRetries = 4
	//DefaultRetryDelay is how long to wait between write retries
	DefaultRetryDelay = 5 * time.Second
	//DefaultWaitTimeout is how long one wait on an asynchronous transfer lasts
	DefaultWaitTimeout = 15 * time.Second
)

//RetryPolicy is how callers of the sector and async layers retry, those layers
// never retry on their own
type RetryPolicy struct {
	Retries     int
	Delay       time.Duration
	WaitTimeout time.Duration
	Logger      sectorio.Logger
}

//DefaultRetryPolicy retries 4 times, 5 seconds apart, waiting 15 seconds per wait
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:     DefaultWriteRetries,
		Delay:       DefaultRetryDelay,
		WaitTimeout: DefaultWaitTimeout,
	}
}

//WriteSectors calls sio.WriteSectors until it succeeds, retries are exhausted
// or ctx is done. Requests rejected before any I/O are not retried.
func (rp RetryPolicy) WriteSectors(ctx context.Context, sio *sectorio.SectorIO, dev sectorio.Device, startSector, numSectors uint64, buf []byte) (int64, error) {
	for attempt := 0; ; attempt++ {
		count, err := sio.WriteSectors(dev, startSector, numSectors, buf)
		if err == nil || !retryable(err) || attempt >= rp.Retries {
			return count, err
		}

		rp.logf("RetryPolicy::WriteSectors(): Write of %d sectors at sector %d failed, retrying (%d of %d) in %s; Details: %s",
			numSectors, startSector, attempt+1, rp.Retries, rp.Delay, err)
		if err = sleepCtx(ctx, rp.Delay); err != nil {
			return count, fmt.Errorf("Gave up retrying write of %d sectors at sector %d: %w", numSectors, startSector, err)
		}
	}
}

//Waiter is an in-flight transfer RetryPolicy.Wait can wait on, *asyncio.Handle
// is one
type Waiter interface {
	Wait(timeout time.Duration) error
	Path() string
}

var _ Waiter = (*asyncio.Handle)(nil)

//Wait waits on h for up to (1+Retries)*WaitTimeout, a transfer failure is
// returned at once
func (rp RetryPolicy) Wait(ctx context.Context, h Waiter) error {
	timeout := rp.WaitTimeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	for attempt := 0; ; attempt++ {
		err := h.Wait(timeout)
		if !errors.Is(err, asyncio.ErrWaitTimeout) || attempt >= rp.Retries {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("Gave up waiting on %q: %w", h.Path(), ctxErr)
		}
		rp.logf("RetryPolicy::Wait(): WARNING: Transfer on %q still in flight after %s (%d of %d)", h.Path(), timeout, attempt+1, rp.Retries)
	}
}

func (rp RetryPolicy) logf(format string, args ...interface{}) {
	if rp.Logger != nil {
		rp.Logger.Printf(format, args...)
	}
}

func retryable(err error) bool {
	for _, usageErr := range []error{sectorio.ErrTransferTooLarge, sectorio.ErrBufferTooSmall, sectorio.ErrOffsetOutOfRange} {
		if errors.Is(err, usageErr) {
			return false
		}
	}
	return true
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
