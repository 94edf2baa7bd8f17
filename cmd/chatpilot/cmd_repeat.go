package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatpilot/chatpilot/pkg/repeat"
)

func newRepeatCmd() *cobra.Command {
	var (
		text     string
		interval time.Duration
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:     "repeat <contact>",
		Short:   "Send the same text on an interval",
		Example: `  chatpilot repeat "Jane Doe" --text "drink water" --every 1h --for 8h`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(text) == "" {
				return errors.New("--text is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			contact := strings.Join(args, " ")
			address, err := a.resolver.Resolve(ctx, contact)
			if err != nil {
				return err
			}

			sent, err := repeat.Run(ctx, a.channel, repeat.Options{
				Address:  address,
				Text:     text,
				Interval: interval,
				Duration: duration,
				Channel:  a.channel.Name(),
			})
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d message(s) to %s\n", sent, contact)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "Message to send")
	cmd.Flags().DurationVar(&interval, "every", time.Minute, "Time between messages")
	cmd.Flags().DurationVar(&duration, "for", 0, "How long to keep sending (0 sends once)")
	return cmd
}
