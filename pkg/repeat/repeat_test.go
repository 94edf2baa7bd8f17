package repeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpilot/chatpilot/pkg/bus"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// advancingSleeper moves the clock forward instead of waiting.
type advancingSleeper struct{ c *clock }

func (s advancingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	<-s.c.After(d)
	return nil
}

func (s advancingSleeper) SleepOrWake(ctx context.Context, d time.Duration, wake <-chan struct{}) error {
	return s.Sleep(ctx, d)
}

type sink struct {
	sent  []bus.OutboundMessage
	err   error
	after func(n int)
}

func (s *sink) Send(ctx context.Context, msg bus.OutboundMessage) error {
	s.sent = append(s.sent, msg)
	if s.after != nil {
		s.after(len(s.sent))
	}
	return s.err
}

func opts(c *clock) Options {
	return Options{
		Address:  "+15550100",
		Text:     "good morning",
		Interval: time.Minute,
		Duration: 5 * time.Minute,
		Clock:    c,
		Sleeper:  advancingSleeper{c},
	}
}

func TestRunSendsUntilDuration(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	s := &sink{}
	n, err := Run(context.Background(), s, opts(c))
	require.NoError(t, err)
	assert.Equal(t, 6, n, "at t=0 and each minute through t=5m")
	assert.Len(t, s.sent, 6)
	assert.Equal(t, "+15550100", s.sent[0].ChatID)
	assert.Equal(t, "good morning", s.sent[5].Content)
	assert.Equal(t, time.Unix(0, 0).Add(5*time.Minute), c.Now())
}

func TestRunOnce(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	s := &sink{}
	o := opts(c)
	o.Duration = 0
	n, err := Run(context.Background(), s, o)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunCancelled(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &sink{after: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	n, err := Run(ctx, s, opts(c))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, n)
}

func TestRunCountsOnlySuccessfulSends(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	s := &sink{err: errors.New("osascript failed")}
	n, err := Run(context.Background(), s, opts(c))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, s.sent, 6)
}

func TestRunValidates(t *testing.T) {
	_, err := Run(context.Background(), &sink{}, Options{Text: "x"})
	assert.Error(t, err)
	_, err = Run(context.Background(), &sink{}, Options{Address: "+1", Text: "x", Duration: time.Minute})
	assert.Error(t, err)
}
