package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/greg-hellings/greencode/pkg/export"
	"github.com/greg-hellings/greencode/pkg/history"
	consolefmt "github.com/greg-hellings/greencode/pkg/report/format"
)

func newHistoryCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "history",
		Short: "Inspect the saved analyses",
		Long: strings.TrimSpace(`
The session keeps the ten most recent analyses, newest first. Entries are
identified by the id shown in "history list"; a unique prefix is enough.`),
	}

	c.AddCommand(newHistoryListCmd())
	c.AddCommand(newHistoryShowCmd())
	c.AddCommand(newHistoryExportCmd())
	c.AddCommand(newHistoryClearCmd())
	return c
}

func newHistoryListCmd() *cobra.Command {
	var noColor bool
	c := &cobra.Command{
		Use:   "list",
		Short: "List saved analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			formatter := consolefmt.NewConsoleFormatter()
			formatter.EnableColors = a.cfg.ColorsEnabled() && !noColor
			return formatter.RenderHistory(a.sess.History(), cmd.OutOrStdout())
		},
	}
	c.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors")
	return c
}

func newHistoryShowCmd() *cobra.Command {
	var noColor bool
	c := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := findEntry(a.sess.History(), args[0])
			if err != nil {
				return err
			}
			formatter := consolefmt.NewConsoleFormatter()
			formatter.EnableColors = a.cfg.ColorsEnabled() && !noColor
			return formatter.RenderEntry(entry, cmd.OutOrStdout())
		},
	}
	c.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors")
	return c
}

func newHistoryExportCmd() *cobra.Command {
	var dir string
	c := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a saved report as an export document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := findEntry(a.sess.History(), args[0])
			if err != nil {
				return err
			}
			// Loading goes through the session so the export matches what
			// the dashboard would produce for the same entry.
			if err := a.sess.LoadEntry(entry); err != nil {
				return err
			}
			doc, err := a.sess.Export(time.Now())
			if err != nil {
				return err
			}
			path, err := export.WriteFile(dir, doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report exported to %s\n", path)
			return nil
		},
	}
	c.Flags().StringVar(&dir, "dir", ".", "Directory to write the export into")
	return c
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n := len(a.sess.History())
			a.sess.ClearHistory()
			if err := a.save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", n)
			return nil
		},
	}
}

// findEntry resolves a full id or a unique id prefix.
func findEntry(entries []history.Entry, id string) (history.Entry, error) {
	var matches []history.Entry
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
		if strings.HasPrefix(e.ID, id) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return history.Entry{}, fmt.Errorf("%s: %w", id, history.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return history.Entry{}, fmt.Errorf("id prefix %q is ambiguous (%d entries)", id, len(matches))
}
