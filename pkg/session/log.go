package session

import (
	"context"
	"sync"

	"github.com/chatpilot/chatpilot/pkg/logger"
)

// OutputLog is a session's append-only line log. Readers may poll it with
// Lines or wait on Since while the worker keeps appending.
type OutputLog struct {
	key string

	mu      sync.RWMutex
	lines   []string
	changed chan struct{}
	closed  bool
}

func NewOutputLog(key string) *OutputLog {
	return &OutputLog{key: key, changed: make(chan struct{})}
}

// Append adds a line and wakes every waiter. Lines appended after Close are
// dropped.
func (l *OutputLog) Append(line string) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.lines = append(l.lines, line)
	close(l.changed)
	l.changed = make(chan struct{})
	l.mu.Unlock()

	logger.InfoCF("session", line, map[string]any{"session": l.key})
}

func (l *OutputLog) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.lines...)
}

func (l *OutputLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.lines)
}

// Since returns the lines from index n on, a channel closed on the next
// change, and whether the log is finished.
func (l *OutputLog) Since(n int) ([]string, <-chan struct{}, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	if n < len(l.lines) {
		out = append(out, l.lines[n:]...)
	}
	return out, l.changed, l.closed
}

// Close marks the log finished.
func (l *OutputLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.changed)
}

// Follow streams every line, from the first, until the log is closed or
// ctx is done. The returned channel is closed when streaming ends.
func (l *OutputLog) Follow(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		n := 0
		for {
			lines, changed, closed := l.Since(n)
			for _, line := range lines {
				select {
				case out <- line:
				case <-ctx.Done():
					return
				}
			}
			n += len(lines)
			if closed {
				return
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
