package channels

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chatpilot/chatpilot/pkg/bus"
	"github.com/chatpilot/chatpilot/pkg/config"
	"github.com/chatpilot/chatpilot/pkg/logger"
	"github.com/chatpilot/chatpilot/pkg/utils"
)

const (
	sendScript         = "sendMessage.applescript"
	defaultSendTimeout = 10 * time.Second
)

// IMessageChannel sends through Messages.app by running an AppleScript with
// the address and text as separate arguments, so nothing is shell-quoted.
type IMessageChannel struct {
	*BaseChannel
	scriptPath string
	timeout    time.Duration
	run        utils.CommandRunner

	// osascript drives one Messages.app instance; sends are serialized
	sendMu sync.Mutex
}

func NewIMessageChannel(cfg config.IMessageConfig) *IMessageChannel {
	timeout := time.Duration(cfg.SendTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &IMessageChannel{
		BaseChannel: NewBaseChannel("imessage"),
		scriptPath:  filepath.Join(cfg.ScriptDir, sendScript),
		timeout:     timeout,
		run:         utils.RunCommand,
	}
}

// SetRunner replaces the process runner, for tests.
func (c *IMessageChannel) SetRunner(run utils.CommandRunner) {
	c.run = run
}

func (c *IMessageChannel) Start(ctx context.Context) error {
	if _, err := os.Stat(c.scriptPath); err != nil {
		return fmt.Errorf("failed to find send script: %w", err)
	}
	c.setRunning(true)
	logger.InfoCF("imessage", "iMessage channel ready", map[string]any{
		"script": c.scriptPath,
	})
	return nil
}

func (c *IMessageChannel) Stop(ctx context.Context) error {
	logger.InfoC("imessage", "Stopping iMessage channel")
	c.setRunning(false)
	return nil
}

func (c *IMessageChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("imessage channel not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("recipient address is empty")
	}
	if msg.Content == "" {
		return fmt.Errorf("message content is empty")
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.run(sendCtx, "osascript", c.scriptPath, msg.ChatID, msg.Content)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send imessage: %w", err)
		}
		logger.DebugCF("imessage", "Message sent", map[string]any{
			"to":         msg.ChatID,
			"request_id": msg.RequestID,
			"preview":    utils.Truncate(msg.Content, 50),
		})
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}
