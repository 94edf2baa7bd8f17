package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputLogConcurrentAppend(t *testing.T) {
	l := NewOutputLog("t")
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				l.Append(fmt.Sprintf("%d-%d", i, j))
				_ = l.Lines()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, l.Len())
}

func TestOutputLogSince(t *testing.T) {
	l := NewOutputLog("t")
	l.Append("a")
	l.Append("b")

	lines, changed, closed := l.Since(1)
	assert.Equal(t, []string{"b"}, lines)
	assert.False(t, closed)

	l.Append("c")
	select {
	case <-changed:
	default:
		t.Fatal("append must signal waiters")
	}

	l.Close()
	l.Append("dropped")
	lines, _, closed = l.Since(0)
	assert.Equal(t, []string{"a", "b", "c"}, lines)
	assert.True(t, closed)

	lines, _, _ = l.Since(10)
	assert.Empty(t, lines)
}

func TestOutputLogFollowCancel(t *testing.T) {
	l := NewOutputLog("t")
	l.Append("one")
	ctx, cancel := context.WithCancel(context.Background())
	ch := l.Follow(ctx)
	require.Equal(t, "one", <-ch)

	cancel()
	for range ch {
	}
	l.Close()
}
