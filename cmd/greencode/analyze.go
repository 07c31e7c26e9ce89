package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/greg-hellings/greencode/pkg/config"
	"github.com/greg-hellings/greencode/pkg/export"
	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
	consolefmt "github.com/greg-hellings/greencode/pkg/report/format"
	"github.com/greg-hellings/greencode/pkg/repository"
	"github.com/greg-hellings/greencode/pkg/state"
)

// analyze command flags
type analyzeFlags struct {
	language     string
	from         string
	outputFormat string
	exportDir    string
	noColor      bool
	noHistory    bool
}

var anFlags analyzeFlags

// newSourceClient builds a code host client. Tests replace it with a fake.
var newSourceClient = repository.NewClient

func newAnalyzeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Analyze source code and print a sustainability report",
		Long: strings.TrimSpace(`
Analyze a snippet and print its sustainability report.

The code comes from a file, from stdin ("-"), from a hosted repository
(--from) or, with no argument, from the editor contents saved by the last
session. The language is taken from --language, then the file extension,
then the session.

Sources:
  github:<owner>/<repo>[@ref]:<path>
  gitlab:<group>[/<subgroup>]/<repo>[@ref]:<path>

Without a path, --from lists the analyzable files of the repository.

Examples:
  greencode analyze main.py
  cat app.ts | greencode analyze - --language typescript
  greencode analyze --from github:octo/app@main:cmd/app/main.go --format json
  greencode analyze main.rs --export ./reports
`),
		Args: cobra.MaximumNArgs(1),
		RunE: runAnalyze,
	}

	c.Flags().StringVarP(&anFlags.language, "language", "l", "", "Language: "+strings.Join(language.Names(), "|"))
	c.Flags().StringVar(&anFlags.from, "from", "", "Load the code from a hosted repository")
	c.Flags().StringVarP(&anFlags.outputFormat, "format", "f", "console", "Output format: console|json")
	c.Flags().StringVar(&anFlags.exportDir, "export", "", "Also write the export document into this directory")
	c.Flags().BoolVar(&anFlags.noColor, "no-color", false, "Disable ANSI colors in console output")
	c.Flags().BoolVar(&anFlags.noHistory, "no-history", false, "Do not save this analysis to the session history")

	return c
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()

	format := strings.ToLower(anFlags.outputFormat)
	if format != "console" && format != "json" {
		return fmt.Errorf("unsupported format %q (supported: console, json)", anFlags.outputFormat)
	}
	if anFlags.from != "" && len(args) > 0 {
		return errors.New("--from and a file argument are mutually exclusive")
	}

	var override language.Language
	if anFlags.language != "" {
		lang, err := language.Parse(anFlags.language)
		if err != nil {
			return err
		}
		override = lang
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	in, err := loadInput(ctx, a.cfg, cmd, args, override)
	if err != nil {
		return err
	}
	if in.listed {
		return nil
	}
	if err := applyInput(a, in); err != nil {
		return err
	}

	timeout, err := a.cfg.TimeoutDuration()
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	slog.Info("Starting analysis", "language", a.sess.Language(), "provider", a.cfg.Provider, "format", format)
	rpt, err := a.sess.Submit(ctx)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if !anFlags.noHistory {
		if err := a.save(ctx); err != nil {
			return err
		}
	}

	doc, err := a.sess.Export(time.Now())
	if err != nil {
		return err
	}

	if anFlags.exportDir != "" {
		path, err := export.WriteFile(anFlags.exportDir, doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report exported to %s\n", path)
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := export.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		if err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	default:
		if err := renderConsole(rpt, a.cfg, out); err != nil {
			return err
		}
	}

	slog.Info("Analysis complete", "duration", time.Since(start).String(), "score", rpt.CarbonScore)
	return nil
}

// input is the code selected on the command line.
type input struct {
	code string
	lang language.Language
	// fromEditor means no code was given; the saved editor contents are
	// analyzed, or the example when lang switches language.
	fromEditor bool
	// listed means the command already printed its output.
	listed bool
}

func loadInput(ctx context.Context, cfg *config.Config, cmd *cobra.Command, args []string, override language.Language) (input, error) {
	switch {
	case anFlags.from != "":
		return loadFromSource(ctx, cfg, cmd.OutOrStdout(), override)
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return input{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		return input{code: string(data), lang: override}, nil
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return input{}, fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		lang := override
		if lang == "" {
			if inferred, ok := language.FromFilename(args[0]); ok {
				lang = inferred
			}
		}
		return input{code: string(data), lang: lang}, nil
	}
	return input{lang: override, fromEditor: true}, nil
}

// applyInput loads in into the session editor.
func applyInput(a *app, in input) error {
	if in.fromEditor {
		if in.lang == "" || in.lang == a.sess.Language() {
			return nil
		}
		return a.sess.SetLanguage(in.lang)
	}
	lang := in.lang
	if lang == "" {
		lang = a.sess.Language()
	}
	if err := a.sess.SetLanguage(lang); err != nil {
		return err
	}
	a.sess.SetCode(in.code)
	return nil
}

func loadFromSource(ctx context.Context, cfg *config.Config, out io.Writer, override language.Language) (input, error) {
	ref, err := repository.ParseSourceRef(anFlags.from)
	if err != nil {
		return input{}, err
	}

	provider := string(ref.Provider)
	src := cfg.Source(provider)
	if ref.Ref == "" {
		ref.Ref = src.Ref
	}

	creds := state.NewInMemoryCredentialStore()
	if err := creds.SetToken(provider, src.Token); err != nil {
		return input{}, err
	}
	token, err := state.ResolveSourceToken(provider, creds)
	if err != nil {
		return input{}, err
	}
	slog.Debug("Resolved source token", "provider", provider, "token", state.RedactToken(token))

	client, err := newSourceClient(provider, repository.Config{Token: token, BaseURL: src.BaseURL})
	if err != nil {
		return input{}, fmt.Errorf("failed to create %s client: %w", provider, err)
	}
	ref, err = repository.ResolveRef(ctx, client, ref)
	if err != nil {
		return input{}, err
	}

	if ref.Path == "" {
		files, err := repository.AnalyzableFiles(ctx, client, ref)
		if err != nil {
			return input{}, err
		}
		if len(files) == 0 {
			return input{}, fmt.Errorf("no analyzable files in %s", ref)
		}
		fmt.Fprintf(out, "Analyzable files in %s/%s (branch %s):\n", ref.Owner, ref.Repo, ref.Ref)
		for _, f := range files {
			lang, _ := language.FromFilename(f.Path)
			fmt.Fprintf(out, "  %-12s %s\n", lang, f.Path)
		}
		fmt.Fprintf(out, "\nPick one with --from %s:<path>\n", ref)
		return input{listed: true}, nil
	}

	source, err := repository.Fetch(ctx, client, ref, override)
	if err != nil {
		return input{}, err
	}
	return input{code: source.Code, lang: source.Language}, nil
}

func renderConsole(rpt *report.Report, cfg *config.Config, w io.Writer) error {
	formatter := consolefmt.NewConsoleFormatter()
	formatter.EnableColors = cfg.ColorsEnabled() && !anFlags.noColor
	if err := formatter.Render(rpt, w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
