package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/chatpilot/chatpilot/pkg/session"
)

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive shell for running several sessions at once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)
			return runConsole(ctx, a)
		},
	}
}

func runConsole(ctx context.Context, a *app) error {
	home, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "chatpilot> ",
		HistoryFile:     filepath.Join(home, ".chatpilot", "console_history"),
		AutoComplete:    consoleCompleter(a),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	fmt.Fprintln(out, `chatpilot console. Type "help" for commands, "exit" to quit.`)

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		// a fresh tree per line so flag values never leak between commands
		root := newConsoleRoot(a, out)
		root.SetArgs(args)
		if err := root.ExecuteContext(ctx); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
	return nil
}

func consoleCompleter(a *app) *readline.PrefixCompleter {
	names := func(string) []string { return a.directory.Names() }
	handles := func(string) []string {
		var out []string
		for _, info := range a.manager.List() {
			out = append(out, string(info.Handle))
		}
		return out
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("start", readline.PcItemDynamic(names)),
		readline.PcItem("stop", readline.PcItemDynamic(handles)),
		readline.PcItem("log", readline.PcItemDynamic(handles)),
		readline.PcItem("list"),
		readline.PcItem("contacts"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func newConsoleRoot(a *app, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.CompletionOptions.DisableDefaultCmd = true

	var flags sessionFlags
	start := &cobra.Command{
		Use:   "start <contact>",
		Short: "Start answering a contact",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(a.cfg, strings.Join(args, " "))
			if err != nil {
				return err
			}
			h, err := a.manager.Start(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "started %s for %s\n", h, opts.Contact)
			return nil
		},
	}
	flags.bind(start)

	stop := &cobra.Command{
		Use:   "stop <session>",
		Short: "Stop a session (a unique handle prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := findHandle(a.manager, args[0])
			if err != nil {
				return err
			}
			if err := a.manager.Stop(h); err != nil {
				return err
			}
			fmt.Fprintf(out, "stopping %s\n", h)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printSessions(out, a.manager.List())
			return nil
		},
	}

	var tail int
	logCmd := &cobra.Command{
		Use:   "log <session>",
		Short: "Print a session's output log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := findHandle(a.manager, args[0])
			if err != nil {
				return err
			}
			lines, err := a.manager.TailLog(h)
			if err != nil {
				return err
			}
			if tail > 0 && len(lines) > tail {
				lines = lines[len(lines)-tail:]
			}
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	logCmd.Flags().IntVarP(&tail, "tail", "n", 20, "Show only the last n lines (0 for all)")

	contactsCmd := &cobra.Command{
		Use:   "contacts [query]",
		Short: "Search the contact directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range a.directory.Filter(strings.Join(args, " ")) {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}

	root.AddCommand(start, stop, list, logCmd, contactsCmd)
	return root
}

type sessionLister interface {
	List() []session.Info
}

// findHandle accepts a full handle or a unique prefix of one.
func findHandle(m sessionLister, prefix string) (session.Handle, error) {
	var match session.Handle
	for _, info := range m.List() {
		if info.Handle == session.Handle(prefix) {
			return info.Handle, nil
		}
		if strings.HasPrefix(string(info.Handle), prefix) {
			if match != "" {
				return "", fmt.Errorf("%q matches more than one session", prefix)
			}
			match = info.Handle
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", session.ErrSessionNotFound, prefix)
	}
	return match, nil
}

func printSessions(out io.Writer, sessions []session.Info) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no sessions")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tCONTACT\tRELATION\tMODE\tSTATUS\tREPLIES")
	for _, s := range sessions {
		status := string(s.Status)
		if s.Status == session.StatusRunning {
			status = s.LoopState
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", shortHandle(s.Handle), s.Contact, s.Relationship, s.Mode, status, s.Replies)
	}
	_ = tw.Flush()
}

func shortHandle(h session.Handle) string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}
