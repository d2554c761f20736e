package chrono

import (
	"context"
	"errors"
	"time"
)

var ErrWaitTimeout = errors.New("timed out waiting for condition")

// API is the interface that anything depending on the system clock should use.
type API interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// StandardImpl is the standard implementation of API using the standard library.
type StandardImpl struct{}

func NewStandardImpl() StandardImpl {
	return StandardImpl{}
}

func (StandardImpl) Now() time.Time {
	return time.Now()
}

func (StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitFor evaluates cond every interval until it reports true, returns an error,
// or timeout has elapsed on the given clock. cond is always evaluated at least once.
func WaitFor(
	ctx context.Context,
	clock API,
	timeout, interval time.Duration,
	cond func(ctx context.Context) (bool, error),
) error {
	deadline := clock.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !clock.Now().Before(deadline) {
			return ErrWaitTimeout
		}
		err = clock.Sleep(ctx, interval)
		if err != nil {
			return err
		}
	}
}
