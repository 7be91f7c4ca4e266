// Package retry serialises AWS Organizations policy mutations on the client side.
//
// Organizations rejects concurrent create/attach/detach/delete calls across the whole
// organization with ConcurrentModificationException, which Control Tower and other
// custom resources trigger regularly. A Retrier waits through a fixed schedule with
// random jitter and retries only that error.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/superwerker/superwerker/internal/helpers"
)

// ConcurrentModificationCode is the AWS Organizations error code that is retried.
const ConcurrentModificationCode = "ConcurrentModificationException"

var (
	// DefaultSchedule holds the delays preceding each attempt.
	DefaultSchedule = []time.Duration{0, 3 * time.Second, 9 * time.Second, 15 * time.Second, 30 * time.Second}
	// DefaultMaxJitter is the upper bound of the random delay added to every scheduled delay.
	DefaultMaxJitter = 5 * time.Second

	// ErrRetriesExhausted is matched by the error returned once the schedule ran out.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ExhaustedError is returned when every scheduled attempt failed with a retryable error.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d attempts failed: %v", e.Operation, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Is makes errors.Is(err, ErrRetriesExhausted) hold for every ExhaustedError.
func (e *ExhaustedError) Is(target error) bool { return target == ErrRetriesExhausted }

// Option configures a Retrier.
type Option func(*Retrier)

// WithLogger sets the logger used to report retried attempts.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retrier) {
		r.logger = logger
	}
}

// WithSchedule replaces the delays preceding each attempt.
func WithSchedule(schedule ...time.Duration) Option {
	return func(r *Retrier) {
		r.schedule = schedule
	}
}

// WithJitter replaces the random jitter source. Tests use it to remove randomness.
func WithJitter(jitter func() time.Duration) Option {
	return func(r *Retrier) {
		r.jitter = jitter
	}
}

// WithRetryable replaces the predicate deciding whether an error is retried.
func WithRetryable(retryable func(error) bool) Option {
	return func(r *Retrier) {
		r.retryable = retryable
	}
}

// Retrier runs an operation through a fixed delay schedule.
type Retrier struct {
	logger    *slog.Logger
	schedule  []time.Duration
	jitter    func() time.Duration
	retryable func(error) bool
}

// New returns a Retrier using DefaultSchedule, DefaultMaxJitter and IsConcurrentModification
// unless overridden.
func New(opts ...Option) *Retrier {
	_inst := &Retrier{
		logger:    helpers.NewNoopLogger(),
		schedule:  DefaultSchedule,
		jitter:    randomJitter(DefaultMaxJitter),
		retryable: IsConcurrentModification,
	}
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

// IsConcurrentModification reports whether err is the Organizations concurrent modification error.
func IsConcurrentModification(err error) bool {
	return helpers.HasErrorCode(err, ConcurrentModificationCode)
}

// Do runs fn once after every scheduled delay until it succeeds, fails with a non-retryable
// error, or the schedule is exhausted.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if len(r.schedule) == 0 {
		return fn(ctx)
	}
	logger := r.logger.With("operation", operation)

	if err := wait(ctx, r.schedule[0]+r.jitter()); err != nil {
		return err
	}

	attempts := 0
	var last error
	b := backoff.WithContext(&scheduleBackOff{schedule: r.schedule, jitter: r.jitter}, ctx)
	err := backoff.RetryNotify(func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !r.retryable(err) {
			return backoff.Permanent(err)
		}
		last = err
		return err
	}, b, func(err error, next time.Duration) {
		logger.Warn("retrying after concurrent modification", slog.Int("attempt", attempts), slog.Duration("sleep", next), slog.Any("error", err))
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return errors.Wrapf(ctx.Err(), "%s aborted", operation)
	case last != nil && errors.Is(err, last):
		return &ExhaustedError{Operation: operation, Attempts: attempts, Last: last}
	default:
		return err
	}
}

// Call is Do for operations returning a value.
func Call[T any](ctx context.Context, r *Retrier, operation string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, operation, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// scheduleBackOff hands out the remaining scheduled delays; the first delay is
// consumed before the first attempt.
type scheduleBackOff struct {
	schedule []time.Duration
	jitter   func() time.Duration
	next     int
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	if b.next >= len(b.schedule) {
		return backoff.Stop
	}
	d := b.schedule[b.next] + b.jitter()
	b.next++
	return d
}

func (b *scheduleBackOff) Reset() {
	b.next = 1
}

func randomJitter(maxJitter time.Duration) func() time.Duration {
	return func() time.Duration {
		if maxJitter <= 0 {
			return 0
		}
		return rand.N(maxJitter + 1)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
