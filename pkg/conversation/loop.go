// Package conversation runs the poll, draft, wait and dispatch cycle for one
// contact.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"

	"github.com/chatpilot/chatpilot/pkg/bus"
	"github.com/chatpilot/chatpilot/pkg/logger"
	"github.com/chatpilot/chatpilot/pkg/media"
	"github.com/chatpilot/chatpilot/pkg/pacing"
	"github.com/chatpilot/chatpilot/pkg/providers"
	"github.com/chatpilot/chatpilot/pkg/responder"
	"github.com/chatpilot/chatpilot/pkg/utils"
)

const DefaultPollInterval = 5 * time.Second

// errStopped signals that cancellation was observed mid-cycle.
var errStopped = errors.New("conversation stopped")

// errNothingToSay means every message in the batch was dropped during
// normalization.
var errNothingToSay = errors.New("no usable messages in batch")

type MessageSource interface {
	FetchNew(ctx context.Context, contactID string, watermark int64) ([]bus.InboundMessage, error)
}

type Normalizer interface {
	Normalize(ctx context.Context, msg bus.InboundMessage) (bus.InboundMessage, error)
}

type Sender interface {
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// Output receives the human-readable session log.
type Output interface {
	Append(line string)
}

type Settings struct {
	SessionKey     string
	Channel        string
	ContactID      string // handle the store filters on
	Address        string // where replies are sent
	WordsPerMinute int
	PollInterval   time.Duration
	ActiveHours    string // cron expression; empty means always
	Watermark      int64
}

type Deps struct {
	Source     MessageSource
	Normalizer Normalizer
	Generator  responder.Generator
	Sender     Sender
	Output     Output
	Sleeper    pacing.Sleeper
	Clock      pacing.Clock
	Wake       <-chan struct{} // optional early wake for idle polls
}

type Loop struct {
	settings Settings
	deps     Deps
	cron     *gronx.Gronx

	watermark atomic.Int64
	state     atomic.Int32
	replies   atomic.Int64

	// normalized messages of the current unanswered burst, by id
	cache  map[int64]bus.InboundMessage
	paused bool
}

func New(settings Settings, deps Deps) (*Loop, error) {
	if settings.ContactID == "" {
		return nil, errors.New("contact id is required")
	}
	if settings.Address == "" {
		settings.Address = settings.ContactID
	}
	if settings.WordsPerMinute <= 0 {
		return nil, fmt.Errorf("words per minute must be positive, got %d", settings.WordsPerMinute)
	}
	if settings.Channel == "" {
		settings.Channel = "imessage"
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}
	if deps.Source == nil || deps.Normalizer == nil || deps.Generator == nil || deps.Sender == nil {
		return nil, errors.New("source, normalizer, generator and sender are required")
	}
	if deps.Clock == nil {
		deps.Clock = pacing.RealClock
	}
	if deps.Sleeper == nil {
		deps.Sleeper = pacing.NewSleeper(deps.Clock)
	}

	l := &Loop{
		settings: settings,
		deps:     deps,
		cache:    make(map[int64]bus.InboundMessage),
	}
	if settings.ActiveHours != "" {
		l.cron = gronx.New()
		if !l.cron.IsValid(settings.ActiveHours) {
			return nil, fmt.Errorf("invalid active hours %q", settings.ActiveHours)
		}
	}
	l.watermark.Store(settings.Watermark)
	return l, nil
}

func (l *Loop) Watermark() int64 { return l.watermark.Load() }

func (l *Loop) State() State { return State(l.state.Load()) }

// Replies is the number of replies dispatched so far.
func (l *Loop) Replies() int64 { return l.replies.Load() }

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

func (l *Loop) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if l.deps.Output != nil {
		l.deps.Output.Append(line)
		return
	}
	logger.InfoCF("conversation", line, map[string]any{"session": l.settings.SessionKey})
}

// Run polls until ctx is cancelled or the store fails. It returns nil after
// cancellation and the fatal error otherwise. The last log line always says
// why the loop ended.
func (l *Loop) Run(ctx context.Context) (err error) {
	l.logf("listening for messages from %s", l.settings.Address)
	defer func() {
		l.setState(StateStopped)
		if err != nil {
			l.logf("stopped: %v", err)
		} else {
			l.logf("stopped: cancelled")
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		l.setState(StatePolling)

		batch, err := l.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if len(batch) > 0 && l.active() {
			if err := l.respond(ctx, batch); err != nil {
				if errors.Is(err, errStopped) || ctx.Err() != nil {
					return nil
				}
				return err
			}
		}

		l.setState(StatePolling)
		if err := l.deps.Sleeper.SleepOrWake(ctx, l.settings.PollInterval, l.deps.Wake); err != nil {
			return nil
		}
	}
}

func (l *Loop) fetch(ctx context.Context) ([]bus.InboundMessage, error) {
	return l.deps.Source.FetchNew(ctx, l.settings.ContactID, l.watermark.Load())
}

// active reports whether now falls inside the configured active hours.
func (l *Loop) active() bool {
	if l.cron == nil {
		return true
	}
	due, err := l.cron.IsDue(l.settings.ActiveHours, l.deps.Clock.Now())
	if err != nil {
		logger.WarnCF("conversation", "Active hours check failed", map[string]any{"error": err.Error()})
		return true
	}
	if !due && !l.paused {
		l.logf("outside active hours (%s); holding replies", l.settings.ActiveHours)
	} else if due && l.paused {
		l.logf("active hours resumed")
	}
	l.paused = !due
	return due
}

// respond drafts, paces and dispatches one reply for batch, regenerating as
// long as new messages keep arriving during the wait. A failed draft skips
// the cycle and leaves the watermark in place.
func (l *Loop) respond(ctx context.Context, batch []bus.InboundMessage) error {
	l.setState(StateDrafting)
	reply, genTime, err := l.draft(ctx, batch)
	if ctx.Err() != nil {
		return errStopped
	}
	if err != nil {
		l.skip(err)
		return nil
	}

	l.setState(StateWaiting)
	wait := max(0, pacing.ComputeDelay(reply, l.settings.WordsPerMinute)-genTime)
	total := wait + genTime
	l.logf("drafted reply in %s, typing for %s", genTime.Round(time.Millisecond), wait.Round(time.Millisecond))
	if err := l.deps.Sleeper.Sleep(ctx, wait); err != nil {
		return errStopped
	}

	for {
		l.setState(StateReconciling)
		latest, err := l.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return errStopped
			}
			return err
		}
		if len(latest) <= len(batch) {
			break
		}
		l.logf("%d more message(s) arrived while typing, redrafting", len(latest)-len(batch))
		batch = latest

		l.setState(StateDrafting)
		reply, genTime, err = l.draft(ctx, batch)
		if ctx.Err() != nil {
			return errStopped
		}
		if err != nil {
			l.skip(err)
			return nil
		}

		l.setState(StateWaiting)
		remaining := max(0, pacing.ComputeDelay(reply, l.settings.WordsPerMinute)-total)
		total += remaining + genTime
		l.logf("typing for another %s", remaining.Round(time.Millisecond))
		if err := l.deps.Sleeper.Sleep(ctx, remaining); err != nil {
			return errStopped
		}
	}

	if ctx.Err() != nil {
		return errStopped
	}
	l.dispatch(ctx, reply, batch)
	return nil
}

// draft normalizes batch and asks the generator for a reply, returning the
// wall-clock time spent.
func (l *Loop) draft(ctx context.Context, batch []bus.InboundMessage) (string, time.Duration, error) {
	start := l.deps.Clock.Now()
	normalized := l.normalize(ctx, batch)
	if len(normalized) == 0 {
		return "", l.deps.Clock.Now().Sub(start), errNothingToSay
	}
	text := media.JoinText(normalized)
	l.logf("responding to: %s", utils.Truncate(text, 200))

	// an in-flight request finishes after a stop; the caller drops the reply
	reply, err := l.deps.Generator.Generate(context.WithoutCancel(ctx), responder.Request{
		BatchText:     text,
		ContainsImage: media.ContainsImage(normalized),
	})
	return reply, l.deps.Clock.Now().Sub(start), err
}

func (l *Loop) normalize(ctx context.Context, batch []bus.InboundMessage) []bus.InboundMessage {
	out := make([]bus.InboundMessage, 0, len(batch))
	for _, m := range batch {
		if nm, ok := l.cache[m.ID]; ok {
			out = append(out, nm)
			continue
		}
		nm, err := l.deps.Normalizer.Normalize(ctx, m)
		if err != nil {
			if !errors.Is(err, media.ErrEmptyText) {
				l.logf("excluding message %d: %v", m.ID, err)
			}
			continue
		}
		l.cache[m.ID] = nm
		out = append(out, nm)
	}
	return out
}

func (l *Loop) skip(err error) {
	if errors.Is(err, responder.ErrNoMatch) {
		logger.DebugCF("conversation", "No rule matched", map[string]any{"session": l.settings.SessionKey})
		return
	}
	var ge *providers.GenerationError
	switch {
	case providers.IsRejected(err):
		logger.WarnCF("conversation", "Generation request rejected", map[string]any{
			"session": l.settings.SessionKey,
			"error":   err.Error(),
		})
		l.logf("no reply this cycle, provider refused the request: %v", err)
	case errors.As(err, &ge):
		l.logf("no reply this cycle, provider unreachable: %v", err)
	default:
		l.logf("no reply this cycle: %v", err)
	}
}

// dispatch sends reply and advances the watermark past batch. Sending is
// at-most-once: a failed send is logged, not retried.
func (l *Loop) dispatch(ctx context.Context, reply string, batch []bus.InboundMessage) {
	l.setState(StateDispatching)
	l.logf("sending: %s", reply)
	err := l.deps.Sender.Send(ctx, bus.OutboundMessage{
		Channel:    l.settings.Channel,
		ChatID:     l.settings.Address,
		Content:    reply,
		SessionKey: l.settings.SessionKey,
		RequestID:  fmt.Sprintf("%s:%d", l.settings.SessionKey, bus.Newest(batch)),
	})
	if err != nil {
		l.logf("send failed: %v", err)
	} else {
		l.replies.Add(1)
	}

	if newest := bus.Newest(batch); newest > l.watermark.Load() {
		l.watermark.Store(newest)
	}
	clear(l.cache)
}
