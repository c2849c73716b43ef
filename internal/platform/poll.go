package platform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: time.Second, MaxAttempts: 60, Timeout: 10 * time.Minute}
}

// CheckFunc reports whether the remote work is done. A positive wait overrides
// the configured interval before the next attempt.
type CheckFunc func(ctx context.Context) (done bool, wait time.Duration, err error)

// Poll calls check until it reports done, fails, or the attempt or time budget
// runs out, in which case the error wraps ErrProcessingTimeout.
func Poll(ctx context.Context, cfg PollConfig, check CheckFunc) error {
	return PollAfter(ctx, cfg, 0, check)
}

// PollAfter is Poll with an initial delay before the first attempt. The delay
// counts against cfg.Timeout.
func PollAfter(ctx context.Context, cfg PollConfig, delay time.Duration, check CheckFunc) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := pause(ctx, delay, 0); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		done, next, err := check(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return fmt.Errorf("%w after %d attempts", ErrProcessingTimeout, attempt)
			}
			return err
		}
		if done {
			return nil
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrProcessingTimeout, attempt)
		}

		if next <= 0 {
			next = cfg.Interval
		}
		if err := pause(ctx, next, attempt); err != nil {
			return err
		}
	}
}

func pause(ctx context.Context, d time.Duration, attempt int) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %d attempts", ErrProcessingTimeout, attempt)
		}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
