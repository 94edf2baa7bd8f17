package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chatpilot/chatpilot/pkg/contacts"
)

func newContactsCmd() *cobra.Command {
	var numbers bool
	cmd := &cobra.Command{
		Use:   "contacts [query]",
		Short: "List contacts from the directory, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := loadDirectory(cmd.Context(), cfg.Contacts)
			names := dir.Filter(strings.Join(args, " "))
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no contacts")
				return nil
			}
			printContacts(cmd, dir, names, numbers)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&numbers, "numbers", "n", false, "Show phone numbers")
	return cmd
}

func printContacts(cmd *cobra.Command, dir *contacts.Directory, names []string, numbers bool) {
	out := cmd.OutOrStdout()
	if !numbers {
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		number, _ := dir.Lookup(name)
		fmt.Fprintf(tw, "%s\t%s\n", name, number)
	}
	_ = tw.Flush()
}
