// Package repeat sends one fixed text on an interval.
package repeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatpilot/chatpilot/pkg/bus"
	"github.com/chatpilot/chatpilot/pkg/logger"
	"github.com/chatpilot/chatpilot/pkg/pacing"
)

type Sender interface {
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

type Options struct {
	Address  string
	Text     string
	Interval time.Duration
	Duration time.Duration // total run time; zero sends once

	Channel string
	Clock   pacing.Clock
	Sleeper pacing.Sleeper
}

// Run sends Text right away and then every Interval until Duration has
// elapsed or ctx is cancelled. Failed sends are logged and counted; Run
// returns how many messages went out.
func Run(ctx context.Context, sender Sender, opts Options) (int, error) {
	if opts.Address == "" || opts.Text == "" {
		return 0, errors.New("address and text are required")
	}
	if opts.Duration > 0 && opts.Interval <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", opts.Interval)
	}
	if opts.Channel == "" {
		opts.Channel = "imessage"
	}
	if opts.Clock == nil {
		opts.Clock = pacing.RealClock
	}
	if opts.Sleeper == nil {
		opts.Sleeper = pacing.NewSleeper(opts.Clock)
	}

	deadline := opts.Clock.Now().Add(opts.Duration)
	sent, failed := 0, 0
	for i := 0; ; i++ {
		err := sender.Send(ctx, bus.OutboundMessage{
			Channel:   opts.Channel,
			ChatID:    opts.Address,
			Content:   opts.Text,
			RequestID: fmt.Sprintf("repeat:%d", i),
		})
		if err != nil {
			failed++
			logger.WarnCF("repeat", "Send failed", map[string]any{
				"to":    opts.Address,
				"error": err.Error(),
			})
		} else {
			sent++
		}

		next := opts.Clock.Now().Add(opts.Interval)
		if opts.Duration <= 0 || next.After(deadline) {
			break
		}
		if err := opts.Sleeper.Sleep(ctx, opts.Interval); err != nil {
			break
		}
	}

	logger.InfoCF("repeat", "Repeat finished", map[string]any{
		"to":     opts.Address,
		"sent":   sent,
		"failed": failed,
	})
	if err := ctx.Err(); err != nil {
		return sent, err
	}
	return sent, nil
}
