package channels

import (
	"context"
	"sync"

	"github.com/chatpilot/chatpilot/pkg/bus"
	"github.com/chatpilot/chatpilot/pkg/logger"
)

// DryRunChannel logs and records replies instead of sending them.
type DryRunChannel struct {
	*BaseChannel
	mu   sync.Mutex
	sent []bus.OutboundMessage
}

func NewDryRunChannel() *DryRunChannel {
	return &DryRunChannel{BaseChannel: NewBaseChannel("dry-run")}
}

func (c *DryRunChannel) Start(ctx context.Context) error {
	c.setRunning(true)
	return nil
}

func (c *DryRunChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

func (c *DryRunChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	logger.InfoCF("dry-run", "Would send message", map[string]any{
		"to":      msg.ChatID,
		"content": msg.Content,
	})
	return nil
}

// Sent returns a copy of everything passed to Send.
func (c *DryRunChannel) Sent() []bus.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bus.OutboundMessage(nil), c.sent...)
}
