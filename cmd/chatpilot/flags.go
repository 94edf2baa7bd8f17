package main

import (
	"github.com/spf13/cobra"

	"github.com/chatpilot/chatpilot/pkg/config"
	"github.com/chatpilot/chatpilot/pkg/responder"
	"github.com/chatpilot/chatpilot/pkg/session"
)

// sessionFlags are the per-session options shared by watch and console start.
type sessionFlags struct {
	operator    string
	relation    string
	wpm         int
	model       string
	context     string
	rules       string
	activeHours string
}

func (f *sessionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.operator, "as", "", "Your name, as the contact knows you")
	cmd.Flags().StringVarP(&f.relation, "relation", "r", "", "Who the contact is to you, e.g. \"my sister\"")
	cmd.Flags().IntVar(&f.wpm, "wpm", 0, "Typing speed in words per minute (10-200)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Language model id")
	cmd.Flags().StringVar(&f.context, "context", "", "Background the replies should keep in mind")
	cmd.Flags().StringVar(&f.rules, "rules", "", "JSON file of keyword rules; replaces the model")
	cmd.Flags().StringVar(&f.activeHours, "active-hours", "", "Cron expression for when replies may go out")
}

func (f *sessionFlags) options(cfg *config.Config, contact string) (session.Options, error) {
	opts := session.Options{
		Contact:        contact,
		OperatorName:   pick(f.operator, cfg.Session.OperatorName),
		Relationship:   f.relation,
		WordsPerMinute: f.wpm,
		Model:          pick(f.model, cfg.Session.Model),
		Context:        f.context,
		ActiveHours:    pick(f.activeHours, cfg.Session.ActiveHours),
	}
	if opts.WordsPerMinute == 0 {
		opts.WordsPerMinute = cfg.Session.WordsPerMinute
	}
	if f.rules != "" {
		rules, err := responder.LoadRules(f.rules)
		if err != nil {
			return session.Options{}, err
		}
		opts.Rules = rules.All()
	}
	return opts, opts.Validate()
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
