// Package poll waits for a remote job to leave its in-flight states.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrInvalidInterval is returned for a non-positive interval.
var ErrInvalidInterval = errors.New("poll: interval must be positive")

// FetchError wraps a failed fetch so callers can tell it apart from cancellation.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return "poll: fetch failed: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Until returns once isTerminal(value) holds. While it does not, it waits one
// interval on clock, calls fetch and reports the fetched value to onStatus.
// The initial value is checked first and is not reported. Cancellation of ctx
// returns ctx.Err() together with the last value seen.
func Until[T any](
	ctx context.Context,
	clock clockwork.Clock,
	interval time.Duration,
	initial T,
	fetch func(ctx context.Context) (T, error),
	isTerminal func(T) bool,
	onStatus func(T),
) (T, error) {
	if interval <= 0 {
		return initial, ErrInvalidInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	current := initial
	for !isTerminal(current) {
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-clock.After(interval):
		}

		next, err := fetch(ctx)
		if err != nil {
			return current, &FetchError{Err: err}
		}
		current = next

		if onStatus != nil {
			onStatus(current)
		}
	}
	return current, nil
}
