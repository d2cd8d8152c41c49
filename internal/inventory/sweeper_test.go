package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (f *fakeSource) SweepExpired(_ context.Context, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return 0, f.fail
	}
	return 1, nil
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	src := &fakeSource{}
	s := &Sweeper{Reservations: src, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return src.count() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

func TestSweeperKeepsGoingAfterSweepError(t *testing.T) {
	src := &fakeSource{fail: errors.New("db down")}
	s := &Sweeper{Reservations: src, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Errors are logged, not fatal: the loop must tick again after one.
	require.Eventually(t, func() bool { return src.count() >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
