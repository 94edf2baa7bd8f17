package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chatpilot/chatpilot/pkg/config"
	"github.com/chatpilot/chatpilot/pkg/logger"
)

var (
	// Global flags
	configPath string
	logLevel   string
	dryRun     bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chatpilot",
	Short: "Answer a contact's texts in your voice, at human typing speed",
	Long: `chatpilot watches the local Messages store for texts from a contact,
drafts a reply with a language model, waits as long as typing it would take
and sends it through Messages.app.

Run "chatpilot console" for an interactive shell that manages several
contacts at once, or "chatpilot serve" to drive sessions over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if dryRun {
			cfg.Channels.IMessage.DryRun = true
		}

		level, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		if err := logger.Configure(logger.Options{Level: level, JSON: cfg.Log.JSON, File: cfg.Log.File}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.chatpilot/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log replies instead of sending them")

	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConsoleCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newContactsCmd())
	rootCmd.AddCommand(newRepeatCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
