// Package pacing spaces replies out like a person typing.
package pacing

import (
	"context"
	"strings"
	"time"
)

// MaxIncrement bounds each sleep step, and so the latency between a
// cancellation and the sleeper noticing it.
const MaxIncrement = time.Second

// ComputeDelay is the time a person typing at wpm would take to write text:
// word_count * 60 / wpm seconds. Empty text and non-positive wpm give zero.
func ComputeDelay(text string, wpm int) time.Duration {
	if wpm <= 0 {
		return 0
	}
	words := len(strings.Fields(text))
	return time.Duration(float64(words) * 60 / float64(wpm) * float64(time.Second))
}

// Clock is the time source used by sleeps and the loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Sleep waits for d in steps of at most MaxIncrement, checking ctx each step.
// It returns ctx.Err() as soon as ctx is done.
func Sleep(ctx context.Context, d time.Duration, clock Clock) error {
	return SleepOrWake(ctx, d, nil, clock)
}

// SleepOrWake is Sleep that also returns early, with nil, when wake fires.
// A nil wake channel never fires.
func SleepOrWake(ctx context.Context, d time.Duration, wake <-chan struct{}, clock Clock) error {
	if clock == nil {
		clock = RealClock
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := clock.Now().Add(d)
	for {
		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return nil
		}
		step := min(remaining, MaxIncrement)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
			return nil
		case <-clock.After(step):
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Sleeper is the suspension point of a conversation loop.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
	SleepOrWake(ctx context.Context, d time.Duration, wake <-chan struct{}) error
}

// ClockSleeper sleeps against a Clock.
type ClockSleeper struct {
	Clock Clock
}

func NewSleeper(clock Clock) *ClockSleeper {
	if clock == nil {
		clock = RealClock
	}
	return &ClockSleeper{Clock: clock}
}

func (s *ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d, s.Clock)
}

func (s *ClockSleeper) SleepOrWake(ctx context.Context, d time.Duration, wake <-chan struct{}) error {
	return SleepOrWake(ctx, d, wake, s.Clock)
}
