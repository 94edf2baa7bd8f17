package contacts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chatpilot/chatpilot/pkg/logger"
	"github.com/chatpilot/chatpilot/pkg/utils"
)

const (
	resolveScript  = "getContactNumber.applescript"
	resolveTimeout = 15 * time.Second
)

// Resolver maps a display name to an address the send channel accepts.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// DirectoryResolver resolves from a loaded Directory.
type DirectoryResolver struct {
	Directory *Directory
}

func (r DirectoryResolver) Resolve(ctx context.Context, name string) (string, error) {
	if IsAddress(name) {
		return addressOf(name), nil
	}
	if r.Directory == nil {
		return "", fmt.Errorf("%w: %q", ErrContactNotFound, name)
	}
	if number, ok := r.Directory.Lookup(name); ok {
		return number, nil
	}
	return "", fmt.Errorf("%w: %q", ErrContactNotFound, name)
}

// ScriptResolver asks the Contacts app through osascript.
type ScriptResolver struct {
	ScriptDir string
	Run       utils.CommandRunner
}

func NewScriptResolver(scriptDir string) *ScriptResolver {
	return &ScriptResolver{ScriptDir: scriptDir, Run: utils.RunCommand}
}

func (r *ScriptResolver) Resolve(ctx context.Context, name string) (string, error) {
	if IsAddress(name) {
		return addressOf(name), nil
	}
	run := r.Run
	if run == nil {
		run = utils.RunCommand
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	out, err := run(ctx, "osascript", filepath.Join(r.ScriptDir, resolveScript), name)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrContactNotFound, name, err)
	}
	number := CleanNumber(strings.TrimSpace(string(out)))
	if number == "" {
		return "", fmt.Errorf("%w: %q", ErrContactNotFound, name)
	}
	return number, nil
}

// Chain tries each resolver in order. Only ErrContactNotFound moves on to the
// next one; any other error is returned as is.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, name string) (string, error) {
	var lastErr error
	for _, r := range c {
		addr, err := r.Resolve(ctx, name)
		if err == nil {
			return addr, nil
		}
		if !errors.Is(err, ErrContactNotFound) {
			return "", err
		}
		logger.DebugCF("contacts", "Resolver missed", map[string]any{
			"name":  name,
			"error": err.Error(),
		})
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: %q", ErrContactNotFound, name)
	}
	return "", lastErr
}

// addressOf normalizes an address typed directly. Emails are kept verbatim.
func addressOf(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "@") {
		return s
	}
	return CleanNumber(s)
}
