package pacing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), ComputeDelay("", 80))
	assert.Equal(t, time.Duration(0), ComputeDelay("   ", 80))
	assert.Equal(t, 3*time.Second, ComputeDelay("one two three four", 80))
	assert.Equal(t, 30*time.Second, ComputeDelay("hi", 2))
	assert.Equal(t, 60*time.Second, ComputeDelay("hi there", 2))
	assert.Equal(t, time.Duration(0), ComputeDelay("hi", 0))
}

func TestComputeDelayScalesWithRate(t *testing.T) {
	msgs := []string{"ok", "sounds good see you then", "running a bit late, grab us a table and order the usual"}
	for _, msg := range msgs {
		for _, wpm := range []int{20, 40, 80, 160} {
			assert.InDelta(t, float64(ComputeDelay(msg, wpm/2))/2, float64(ComputeDelay(msg, wpm)), 1, "%q at %d wpm", msg, wpm)
		}
	}
}

// stepClock advances instantly and records each requested step.
type stepClock struct {
	mu    sync.Mutex
	now   time.Time
	steps []time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.steps = append(c.steps, d)
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func TestSleepUsesBoundedIncrements(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0)}
	require.NoError(t, Sleep(context.Background(), 3500*time.Millisecond, clock))
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second, 500 * time.Millisecond}, clock.steps)
}

func TestSleepZero(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0)}
	require.NoError(t, Sleep(context.Background(), 0, clock))
	assert.Empty(t, clock.steps)
}

func TestSleepReturnsSoonAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	err := Sleep(ctx, 30*time.Second, RealClock)
	elapsed := time.Since(start)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, elapsed, 100*time.Millisecond+MaxIncrement)
}

func TestSleepAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour, RealClock), context.Canceled)
}

func TestSleepOrWake(t *testing.T) {
	wake := make(chan struct{}, 1)
	wake <- struct{}{}
	start := time.Now()
	require.NoError(t, SleepOrWake(context.Background(), time.Minute, wake, RealClock))
	assert.Less(t, time.Since(start), time.Second)
}
