package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isDone(s string) bool {
	return s != "queued" && s != "in_progress"
}

type scripted struct {
	statuses []string
	calls    int
}

func (s *scripted) fetch(ctx context.Context) (string, error) {
	v := s.statuses[s.calls]
	s.calls++
	return v, nil
}

func TestUntil_ReportsEveryFetchedStatus(t *testing.T) {
	clock := clockwork.NewFakeClock()
	script := &scripted{statuses: []string{"queued", "in_progress", "in_progress", "completed"}}

	var seen []string
	type result struct {
		status string
		err    error
	}
	done := make(chan result, 1)

	go func() {
		status, err := Until(context.Background(), clock, time.Second, "queued", script.fetch, isDone,
			func(s string) { seen = append(seen, s) })
		done <- result{status, err}
	}()

	for i := 0; i < 4; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		cancel()
		clock.Advance(time.Second)
	}

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "completed", r.status)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not finish")
	}
	assert.Equal(t, []string{"queued", "in_progress", "in_progress", "completed"}, seen)
	assert.Equal(t, 4, script.calls)
}

func TestUntil_TerminalInitialSkipsFetch(t *testing.T) {
	script := &scripted{}

	status, err := Until(context.Background(), clockwork.NewFakeClock(), time.Second, "failed", script.fetch, isDone, nil)

	require.NoError(t, err)
	assert.Equal(t, "failed", status)
	assert.Equal(t, 0, script.calls)
}

func TestUntil_FetchErrorStops(t *testing.T) {
	boom := errors.New("boom")

	_, err := Until(context.Background(), clockwork.NewRealClock(), time.Millisecond, "queued",
		func(ctx context.Context) (string, error) { return "", boom },
		isDone, nil)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, boom)
}

func TestUntil_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := Until(ctx, clockwork.NewFakeClock(), time.Second, "queued",
		func(ctx context.Context) (string, error) { return "completed", nil },
		isDone, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "queued", status)
}

func TestUntil_RejectsNonPositiveInterval(t *testing.T) {
	_, err := Until(context.Background(), nil, 0, "queued",
		func(ctx context.Context) (string, error) { return "completed", nil },
		isDone, nil)

	assert.ErrorIs(t, err, ErrInvalidInterval)
}
