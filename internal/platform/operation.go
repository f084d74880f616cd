package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Operation is a long-running platform request. Wait blocks until the
// operation reaches a terminal state or ctx is done.
type Operation[T any] interface {
	ID() string

	Wait(ctx context.Context) (T, error)
}

// PollFunc reports the current state of an operation. done is true once the
// result is final.
type PollFunc[T any] func(ctx context.Context) (result T, done bool, err error)

type WaitOptions struct {
	Interval time.Duration
	// Timeout bounds the whole wait. Zero means no local bound.
	Timeout time.Duration
	// Progress shows a spinner on stderr with this description when non-empty.
	Progress string
}

const defaultPollInterval = 15 * time.Second

type PollingOperation[T any] struct {
	id   string
	poll PollFunc[T]
	opts WaitOptions
}

var _ Operation[int] = (*PollingOperation[int])(nil)

func NewPollingOperation[T any](id string, poll PollFunc[T], opts WaitOptions) *PollingOperation[T] {
	if opts.Interval <= 0 {
		opts.Interval = defaultPollInterval
	}
	return &PollingOperation[T]{id: id, poll: poll, opts: opts}
}

func (op *PollingOperation[T]) ID() string {
	return op.id
}

func (op *PollingOperation[T]) Wait(ctx context.Context) (T, error) {
	var zero T

	if op.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, op.opts.Timeout)
		defer cancel()
	}

	var bar *progressbar.ProgressBar
	if op.opts.Progress != "" {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(op.opts.Progress),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetElapsedTime(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
	}

	start := time.Now()
	for {
		result, done, err := op.poll(ctx)
		if err != nil {
			return zero, op.wrapContextErr(ctx, err)
		}
		if done {
			slog.Info("operation completed", "operation", op.id, "elapsed", time.Since(start).Round(time.Second))
			return result, nil
		}

		if bar != nil {
			_ = bar.Add(1)
		}

		select {
		case <-ctx.Done():
			return zero, op.wrapContextErr(ctx, ctx.Err())
		case <-time.After(op.opts.Interval):
		}
	}
}

func (op *PollingOperation[T]) wrapContextErr(ctx context.Context, err error) error {
	if op.opts.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("operation %s did not complete within %s: %w", op.id, op.opts.Timeout, ErrTimeout)
	}
	return err
}

// CompletedOperation wraps a result that is already final.
type CompletedOperation[T any] struct {
	id     string
	result T
}

func NewCompletedOperation[T any](id string, result T) *CompletedOperation[T] {
	return &CompletedOperation[T]{id: id, result: result}
}

func (op *CompletedOperation[T]) ID() string {
	return op.id
}

func (op *CompletedOperation[T]) Wait(ctx context.Context) (T, error) {
	return op.result, nil
}
