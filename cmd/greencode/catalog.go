package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/greg-hellings/greencode/pkg/config"
	"github.com/greg-hellings/greencode/pkg/dashboard"
	"github.com/greg-hellings/greencode/pkg/language"
	consolefmt "github.com/greg-hellings/greencode/pkg/report/format"
)

const defaultMarkdownWidth = 80

func newLanguagesCmd() *cobra.Command {
	var noColor bool
	c := &cobra.Command{
		Use:   "languages",
		Short: "List the supported languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			formatter := consolefmt.NewConsoleFormatter()
			formatter.EnableColors = a.cfg.ColorsEnabled() && !noColor
			return formatter.RenderLanguages(a.sess.Language(), cmd.OutOrStdout())
		},
	}
	c.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors")
	return c
}

func newExampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example <language>",
		Short: "Print the example snippet for a language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := language.Parse(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), lang.Example())
			return err
		},
	}
}

func newAboutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Explain what GreenCode AI measures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printMarkdown(cmd.OutOrStdout(), dashboard.About())
		},
	}
}

func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "Show the documentation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printMarkdown(cmd.OutOrStdout(), dashboard.Docs())
		},
	}
}

// printMarkdown renders md with the configured theme. Colors are dropped
// when disabled in the configuration or when w is not a terminal.
func printMarkdown(w io.Writer, md string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	theme, width := markdownStyle(cfg, w)
	_, err = fmt.Fprint(w, dashboard.RenderMarkdown(md, theme, width))
	return err
}

func markdownStyle(cfg *config.Config, w io.Writer) (string, int) {
	theme, width := cfg.Display.Theme, defaultMarkdownWidth
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "notty", width
	}
	if !cfg.ColorsEnabled() {
		theme = "notty"
	}
	if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 && tw < width {
		width = tw
	}
	return theme, width
}
