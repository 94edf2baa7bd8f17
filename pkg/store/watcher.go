package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/chatpilot/chatpilot/pkg/logger"
)

// Watcher signals when the message database or its WAL changes so an idle
// poll can run early. Signals coalesce: a burst of writes yields at most one
// pending wake per subscriber.
type Watcher struct {
	dbPath  string
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	subs    map[chan struct{}]struct{}
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewWatcher(dbPath string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dbPath:  dbPath,
		watcher: w,
		subs:    make(map[chan struct{}]struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start watches the directory holding the database. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	// running must stay false on failure: Stop waits on doneCh only then
	if err := w.watcher.Add(filepath.Dir(w.dbPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.dbPath), err)
	}
	w.running = true
	logger.DebugCF("store", "Watching message store", map[string]any{"path": w.dbPath})

	go w.run(ctx)
	return nil
}

// Subscribe returns a channel that receives a value after each change. The
// returned func unsubscribes.
func (w *Watcher) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	w.mu.Lock()
	w.subs[ch] = struct{}{}
	w.mu.Unlock()
	return ch, func() {
		w.mu.Lock()
		delete(w.subs, ch)
		w.mu.Unlock()
	}
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		logger.WarnCF("store", "Failed to close watcher", map[string]any{"error": err.Error()})
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.notify()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.WarnCF("store", "Watcher error", map[string]any{"error": err.Error()})
		}
	}
}

// relevant keeps writes to chat.db, chat.db-wal and chat.db-shm.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return strings.HasPrefix(filepath.Base(event.Name), filepath.Base(w.dbPath))
}

func (w *Watcher) notify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
