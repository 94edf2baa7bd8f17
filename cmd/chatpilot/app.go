package main

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/chatpilot/chatpilot/pkg/channels"
	"github.com/chatpilot/chatpilot/pkg/config"
	"github.com/chatpilot/chatpilot/pkg/contacts"
	"github.com/chatpilot/chatpilot/pkg/logger"
	"github.com/chatpilot/chatpilot/pkg/media"
	"github.com/chatpilot/chatpilot/pkg/providers"
	"github.com/chatpilot/chatpilot/pkg/session"
	"github.com/chatpilot/chatpilot/pkg/store"
	"github.com/chatpilot/chatpilot/pkg/voice"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg       *config.Config
	reader    *store.Reader
	watcher   *store.Watcher
	directory *contacts.Directory
	resolver  contacts.Resolver
	channel   channels.Channel
	manager   *session.Manager
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		reader: store.NewReader(cfg.Store.DBPath, cfg.Store.AttachmentsHome),
	}

	a.directory = loadDirectory(ctx, cfg.Contacts)
	a.resolver = contacts.Chain{
		contacts.DirectoryResolver{Directory: a.directory},
		contacts.NewScriptResolver(cfg.Channels.IMessage.ScriptDir),
	}

	if cfg.Channels.IMessage.DryRun {
		a.channel = channels.NewDryRunChannel()
	} else {
		a.channel = channels.NewIMessageChannel(cfg.Channels.IMessage)
	}
	if err := a.channel.Start(ctx); err != nil {
		return nil, err
	}

	var subscribe func() (<-chan struct{}, func())
	if cfg.Store.WatchChanges {
		w, err := store.NewWatcher(cfg.Store.DBPath)
		if err != nil {
			return nil, err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return nil, err
		}
		a.watcher = w
		subscribe = w.Subscribe
	}

	normalizer := media.NewNormalizer(
		providers.CreateImageDescriber(cfg.Providers, cfg.Session.VisionModel),
		newTranscriber(cfg),
		voice.NewFFmpegConverter(cfg.Media.FFmpegPath, cfg.Media.TempDir),
	)

	a.manager = session.NewManager(session.Deps{
		Store:      a.reader,
		Resolver:   a.resolver,
		Normalizer: normalizer,
		Sender:     a.channel,
		Provider: func(model string) (providers.LLMProvider, error) {
			return providers.CreateProvider(cfg.Providers, model, cfg.Session.MaxTokens)
		},
		Subscribe:    subscribe,
		PollInterval: time.Duration(cfg.Session.PollIntervalSeconds) * time.Second,
		Channel:      a.channel.Name(),
	})
	return a, nil
}

// close stops every session, then the watcher and the channel.
func (a *app) close(ctx context.Context) error {
	err := a.manager.Shutdown(ctx)
	if a.watcher != nil {
		a.watcher.Stop()
	}
	return errors.Join(err, a.channel.Stop(ctx))
}

func newTranscriber(cfg *config.Config) voice.Transcriber {
	switch cfg.Session.TranscriptionBackend {
	case "groq":
		if cfg.Providers.Groq.APIKey == "" {
			return nil
		}
		return voice.NewGroqTranscriber(cfg.Providers.Groq.APIKey)
	default:
		if cfg.Providers.OpenAI.APIKey == "" && cfg.Providers.OpenAI.APIBase == "" {
			return nil
		}
		return voice.NewOpenAITranscriber(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase)
	}
}

// loadDirectory prefers the helper command, then the directory file. Any
// failure leaves an empty directory; names then resolve through the script.
func loadDirectory(ctx context.Context, cfg config.ContactsConfig) *contacts.Directory {
	if len(cfg.HelperCommand) > 0 {
		d, err := contacts.LoadDirectoryCommand(ctx, nil, cfg.HelperCommand)
		if err == nil {
			return d
		}
		logger.WarnCF("contacts", "Contacts helper failed", map[string]any{"error": err.Error()})
	}
	if cfg.DirectoryFile != "" {
		d, err := contacts.LoadDirectoryFile(cfg.DirectoryFile)
		if err == nil {
			return d
		}
		if !errors.Is(err, fs.ErrNotExist) {
			logger.WarnCF("contacts", "Contact directory unreadable", map[string]any{
				"path":  cfg.DirectoryFile,
				"error": err.Error(),
			})
		}
	}
	return contacts.NewDirectory(nil)
}

// shutdownTimeout bounds how long close may wait for workers.
const shutdownTimeout = 10 * time.Second

func closeApp(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.close(ctx); err != nil {
		logger.WarnCF("chatpilot", "Shutdown incomplete", map[string]any{"error": err.Error()})
	}
}
