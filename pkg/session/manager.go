// Package session supervises one conversation worker per contact.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chatpilot/chatpilot/pkg/config"
	"github.com/chatpilot/chatpilot/pkg/contacts"
	"github.com/chatpilot/chatpilot/pkg/conversation"
	"github.com/chatpilot/chatpilot/pkg/logger"
	"github.com/chatpilot/chatpilot/pkg/pacing"
	"github.com/chatpilot/chatpilot/pkg/providers"
	"github.com/chatpilot/chatpilot/pkg/responder"
)

var (
	ErrDuplicateSession = errors.New("a session is already active for this contact")
	ErrSessionNotFound  = errors.New("session not found")
	ErrManagerClosed    = errors.New("session manager is shut down")
)

type Handle string

type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
)

// Store is the part of the message store a session needs.
type Store interface {
	conversation.MessageSource
	LastMessageID(ctx context.Context) (int64, error)
}

// Options describes a session as the operator submits it.
type Options struct {
	Contact        string `json:"contact"` // display name or address
	OperatorName   string `json:"operator_name"`
	Relationship   string `json:"relationship"`
	WordsPerMinute int    `json:"words_per_minute"`
	Model          string `json:"model"`
	Context        string `json:"context,omitempty"`
	ActiveHours    string `json:"active_hours,omitempty"`

	// Rules switches the session to keyword auto-replies; no model is used.
	Rules []responder.Rule `json:"rules,omitempty"`
}

// Info describes a session for listings.
type Info struct {
	Handle         Handle    `json:"handle"`
	Contact        string    `json:"contact"`
	Address        string    `json:"address"`
	OperatorName   string    `json:"operator_name"`
	Relationship   string    `json:"relationship"`
	Model          string    `json:"model"`
	Mode           string    `json:"mode"`
	WordsPerMinute int       `json:"words_per_minute"`
	Status         Status    `json:"status"`
	LoopState      string    `json:"loop_state"`
	StartedAt      time.Time `json:"started_at"`
	Watermark      int64     `json:"watermark"`
	Replies        int64     `json:"replies"`
	Error          string    `json:"error,omitempty"`
}

// ProviderFunc builds the language model client for a model id.
type ProviderFunc func(model string) (providers.LLMProvider, error)

type Deps struct {
	Store      Store
	Resolver   contacts.Resolver
	Normalizer conversation.Normalizer
	Sender     conversation.Sender
	Provider   ProviderFunc

	// Subscribe, when set, returns a wake channel for idle polls and its
	// release function.
	Subscribe func() (<-chan struct{}, func())

	Clock        pacing.Clock
	Sleeper      pacing.Sleeper
	PollInterval time.Duration
	Channel      string
}

type worker struct {
	info   Info
	loop   *conversation.Loop
	log    *OutputLog
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

type Manager struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[Handle]*worker
	active   map[string]Handle // contact address -> running session
	closed   bool
}

func NewManager(deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = pacing.RealClock
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[Handle]*worker),
		active:   make(map[string]Handle),
	}
}

// Validate checks opts without side effects.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Contact) == "" {
		return errors.New("contact is required")
	}
	if err := config.ValidateWordsPerMinute(o.WordsPerMinute); err != nil {
		return err
	}
	if err := config.ValidateActiveHours(o.ActiveHours); err != nil {
		return err
	}
	if len(o.Rules) > 0 {
		return nil
	}
	if strings.TrimSpace(o.OperatorName) == "" {
		return errors.New("operator name is required")
	}
	if strings.TrimSpace(o.Model) == "" {
		return errors.New("model is required")
	}
	return nil
}

// Start resolves the contact, pins the watermark to the newest stored
// message and launches the worker. It fails with ErrDuplicateSession when
// the contact already has a running session, leaving that session alone.
func (m *Manager) Start(ctx context.Context, opts Options) (Handle, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	if m.isClosed() {
		return "", ErrManagerClosed
	}

	address, err := m.deps.Resolver.Resolve(ctx, opts.Contact)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", opts.Contact, err)
	}
	if m.activeFor(address) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateSession, opts.Contact)
	}

	watermark, err := m.deps.Store.LastMessageID(ctx)
	if err != nil {
		return "", err
	}

	gen, mode, err := m.generator(opts)
	if err != nil {
		return "", err
	}

	h := Handle(uuid.NewString())
	out := NewOutputLog(string(h))

	var wake <-chan struct{}
	release := func() {}
	if m.deps.Subscribe != nil {
		wake, release = m.deps.Subscribe()
	}

	loop, err := conversation.New(conversation.Settings{
		SessionKey:     string(h),
		Channel:        m.deps.Channel,
		ContactID:      address,
		Address:        address,
		WordsPerMinute: opts.WordsPerMinute,
		PollInterval:   m.deps.PollInterval,
		ActiveHours:    opts.ActiveHours,
		Watermark:      watermark,
	}, conversation.Deps{
		Source:     m.deps.Store,
		Normalizer: m.deps.Normalizer,
		Generator:  gen,
		Sender:     m.deps.Sender,
		Output:     out,
		Sleeper:    m.deps.Sleeper,
		Clock:      m.deps.Clock,
		Wake:       wake,
	})
	if err != nil {
		release()
		return "", err
	}

	w := &worker{
		info: Info{
			Handle:         h,
			Contact:        opts.Contact,
			Address:        address,
			OperatorName:   opts.OperatorName,
			Relationship:   opts.Relationship,
			Model:          opts.Model,
			Mode:           mode,
			WordsPerMinute: opts.WordsPerMinute,
			Status:         StatusRunning,
			StartedAt:      m.deps.Clock.Now(),
			Watermark:      watermark,
		},
		loop: loop,
		log:  out,
		done: make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		release()
		return "", ErrManagerClosed
	}
	// re-checked under the lock; resolution above ran unlocked
	if _, busy := m.active[address]; busy {
		m.mu.Unlock()
		release()
		return "", fmt.Errorf("%w: %s", ErrDuplicateSession, opts.Contact)
	}
	runCtx, cancel := context.WithCancel(m.ctx)
	w.cancel = cancel
	m.sessions[h] = w
	m.active[address] = h
	m.mu.Unlock()

	logger.InfoCF("session", "Session started", map[string]any{
		"session":   string(h),
		"contact":   opts.Contact,
		"mode":      mode,
		"watermark": watermark,
	})

	go m.run(runCtx, w, release)
	return h, nil
}

func (m *Manager) generator(opts Options) (responder.Generator, string, error) {
	if len(opts.Rules) > 0 {
		rules, err := responder.NewRules(opts.Rules)
		if err != nil {
			return nil, "", err
		}
		return rules, "rules", nil
	}
	if m.deps.Provider == nil {
		return nil, "", errors.New("no language model provider configured")
	}
	provider, err := m.deps.Provider(opts.Model)
	if err != nil {
		return nil, "", err
	}
	return responder.New(provider, opts.Model, responder.Persona{
		OperatorName: opts.OperatorName,
		ContactName:  opts.Contact,
		Relationship: opts.Relationship,
		Context:      opts.Context,
	}), "ai", nil
}

func (m *Manager) run(ctx context.Context, w *worker, release func()) {
	defer release()
	err := w.loop.Run(ctx)

	m.mu.Lock()
	w.err = err
	switch {
	case err != nil:
		w.info.Status = StatusFailed
		w.info.Error = err.Error()
	default:
		w.info.Status = StatusStopped
	}
	if m.active[w.info.Address] == w.info.Handle {
		delete(m.active, w.info.Address)
	}
	m.mu.Unlock()

	w.cancel()
	w.log.Close()
	close(w.done)

	fields := map[string]any{"session": string(w.info.Handle), "replies": w.loop.Replies()}
	if err != nil {
		fields["error"] = err.Error()
		logger.ErrorCF("session", "Session failed", fields)
		return
	}
	logger.InfoCF("session", "Session stopped", fields)
}

// Stop asks the session to end. It does not wait; see Wait.
func (m *Manager) Stop(h Handle) error {
	w, err := m.worker(h)
	if err != nil {
		return err
	}
	w.cancel()
	return nil
}

// Wait blocks until the session's worker has exited and returns its fatal
// error, if any.
func (m *Manager) Wait(ctx context.Context, h Handle) error {
	w, err := m.worker(h)
	if err != nil {
		return err
	}
	select {
	case <-w.done:
		m.mu.Lock()
		defer m.mu.Unlock()
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) IsActive(h Handle) bool {
	w, err := m.worker(h)
	if err != nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// TailLog returns a snapshot of the session's output log.
func (m *Manager) TailLog(h Handle) ([]string, error) {
	w, err := m.worker(h)
	if err != nil {
		return nil, err
	}
	return w.log.Lines(), nil
}

// Follow streams the session's output log; see OutputLog.Follow.
func (m *Manager) Follow(ctx context.Context, h Handle) (<-chan string, error) {
	w, err := m.worker(h)
	if err != nil {
		return nil, err
	}
	return w.log.Follow(ctx), nil
}

func (m *Manager) Get(h Handle) (Info, error) {
	w, err := m.worker(h)
	if err != nil {
		return Info{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(w), nil
}

// List returns every known session, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.sessions))
	for _, w := range m.sessions {
		out = append(out, m.snapshot(w))
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Shutdown stops every session and waits for their workers, or for ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	workers := make([]*worker, 0, len(m.sessions))
	for _, w := range m.sessions {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	m.cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		g.Go(func() error {
			select {
			case <-w.done:
				return nil
			case <-gctx.Done():
				return fmt.Errorf("session %s did not stop: %w", w.info.Handle, gctx.Err())
			}
		})
	}
	return g.Wait()
}

func (m *Manager) worker(h Handle) (*worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.sessions[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, h)
	}
	return w, nil
}

func (m *Manager) activeFor(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[address]
	return ok
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// snapshot must be called with m.mu held.
func (m *Manager) snapshot(w *worker) Info {
	info := w.info
	info.LoopState = w.loop.State().String()
	info.Watermark = w.loop.Watermark()
	info.Replies = w.loop.Replies()
	return info
}
