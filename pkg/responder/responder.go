// Package responder drafts persona replies to a batch of incoming messages.
package responder

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/chatpilot/chatpilot/pkg/logger"
	"github.com/chatpilot/chatpilot/pkg/providers"
	"github.com/chatpilot/chatpilot/pkg/utils"
)

// ErrEmptyReply is returned when the model answers with nothing usable.
var ErrEmptyReply = errors.New("model returned an empty reply")

// aiMarker matches the standalone word "AI".
var aiMarker = regexp.MustCompile(`\bAI\b`)

type Request struct {
	BatchText     string
	ContainsImage bool
}

// Generator drafts a reply for a settled or growing batch.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Responder keeps one conversation's history. It is owned by a single
// session and not meant to be shared across sessions.
type Responder struct {
	provider providers.LLMProvider
	model    string
	persona  Persona

	mu      sync.Mutex
	history []providers.Message
}

func New(provider providers.LLMProvider, model string, persona Persona) *Responder {
	return &Responder{
		provider: provider,
		model:    model,
		persona:  persona,
	}
}

// History returns a copy of the conversation so far.
func (r *Responder) History() []providers.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]providers.Message, len(r.history))
	copy(out, r.history)
	return out
}

// Generate asks the model for a reply to req. A reply naming itself AI gets
// exactly one corrective follow-up. History gains the incoming text and the
// final reply; nothing is recorded when generation fails.
func (r *Responder) Generate(ctx context.Context, req Request) (string, error) {
	incoming := RewriteQuestioned(req.BatchText)
	if incoming != req.BatchText {
		logger.DebugCF("responder", "Rewrote questioned message", map[string]any{
			"preview": utils.Truncate(incoming, 80),
		})
	}

	r.mu.Lock()
	messages := make([]providers.Message, 0, len(r.history)+4)
	messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: BuildSystemPrompt(r.persona, req.ContainsImage)})
	messages = append(messages, r.history...)
	r.mu.Unlock()
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: incoming})

	reply, err := r.chat(ctx, messages)
	if err != nil {
		return "", err
	}

	if aiMarker.MatchString(reply) {
		logger.InfoCF("responder", "Reply mentions AI, asking for a rephrase", map[string]any{
			"preview": utils.Truncate(reply, 80),
		})
		messages = append(messages,
			providers.Message{Role: providers.RoleAssistant, Content: reply},
			providers.Message{Role: providers.RoleUser, Content: correctionPrompt(reply)},
		)
		reply, err = r.chat(ctx, messages)
		if err != nil {
			return "", err
		}
	}

	r.mu.Lock()
	r.history = append(r.history,
		providers.Message{Role: providers.RoleUser, Content: incoming},
		providers.Message{Role: providers.RoleAssistant, Content: reply},
	)
	r.mu.Unlock()
	return reply, nil
}

func (r *Responder) chat(ctx context.Context, messages []providers.Message) (string, error) {
	reply, err := r.provider.Chat(ctx, messages, r.model)
	if err != nil {
		if errors.Is(err, providers.ErrGenerationUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", providers.ErrGenerationUnavailable, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: %w", providers.ErrGenerationUnavailable, ErrEmptyReply)
	}
	return reply, nil
}
