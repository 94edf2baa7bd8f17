package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "watch <contact>",
		Short: "Answer one contact in the foreground until interrupted",
		Example: `  chatpilot watch "Jane Doe" --as Sam --relation "my sister" --wpm 60
  chatpilot watch +15551234567 --rules replies.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cfg, strings.Join(args, " "))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			h, err := a.manager.Start(ctx, opts)
			if err != nil {
				return err
			}
			defer context.AfterFunc(ctx, func() { _ = a.manager.Stop(h) })()

			lines, err := a.manager.Follow(context.Background(), h)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for line := range lines {
				fmt.Fprintln(out, line)
			}
			return a.manager.Wait(context.Background(), h)
		},
	}
	flags.bind(cmd)
	return cmd
}
