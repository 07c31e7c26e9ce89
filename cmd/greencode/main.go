package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greg-hellings/greencode/pkg/analysis"
	"github.com/greg-hellings/greencode/pkg/config"
	"github.com/greg-hellings/greencode/pkg/session"
	"github.com/greg-hellings/greencode/pkg/state"
)

// build-time override (e.g. -ldflags "-X main.version=1.2.3")
var version = "dev"

// Global (root-level) flag variables
var (
	flagVerbose bool
	flagDebug   bool
	flagConfig  string
	flagState   string
)

// newAnalyzer builds the analyzer for cfg. Tests replace it with a stub.
var newAnalyzer = func(cfg *config.Config) (analysis.Analyzer, error) {
	return analysis.New(analysis.Config{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		Endpoint: cfg.Endpoint,
		Logger:   slog.Default(),
	}, state.EnvKeySource(cfg.Provider))
}

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		// If Execute() returns an error, logging may or may not be initialized yet.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root Cobra command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "greencode",
		Short: "GreenCode AI CLI",
		Long: strings.TrimSpace(`
GreenCode AI - Sustainability reports for source code

Paste or load a snippet, send it to an LLM and get back a carbon score,
energy and emission estimates, hotspots with suggestions and an optimized
rewrite. Recent analyses are kept in a local history.`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (info) logging")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging (overrides --verbose)")
	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Configuration file (default: <user config dir>/greencode/config.yaml)")
	cmd.PersistentFlags().StringVar(&flagState, "state", "", "State file (overrides state.path from the configuration)")
	cmd.Version = version

	// Add subcommands
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newLanguagesCmd())
	cmd.AddCommand(newExampleCmd())
	cmd.AddCommand(newAboutCmd())
	cmd.AddCommand(newDocsCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// newVersionCmd prints version info (simple helper).
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "GreenCode AI version: %s\n", version)
		},
	}
}

// initLogging configures the global slog logger based on flags.
func initLogging() {
	var level slog.Level
	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	default:
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging initialized", "level", level.String())
}

// app bundles what every stateful command needs.
type app struct {
	cfg   *config.Config
	store state.Store
	sess  *session.Session
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openApp loads the configuration and state and rebuilds the session.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	path := cfg.State.Path
	if flagState != "" {
		path = flagState
	}
	store, err := state.Open(cfg.State.Backend, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	opts := append(snap.SessionOptions(), session.WithLogger(slog.Default()))
	slog.Debug("Session restored",
		"state", store.Path(),
		"provider", cfg.Provider,
		"language", snap.Language,
		"entries", len(snap.History))

	return &app{cfg: cfg, store: store, sess: session.New(analyzer, opts...)}, nil
}

// save persists the session.
func (a *app) save(ctx context.Context) error {
	if err := a.store.Save(ctx, state.FromSession(a.sess)); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// saveQuietly persists the session from callbacks that cannot return errors.
func (a *app) saveQuietly(s *session.Session) {
	if err := a.store.Save(context.Background(), state.FromSession(s)); err != nil {
		slog.Warn("Failed to save state", "path", a.store.Path(), "error", err)
	}
}

func (a *app) Close() error {
	return a.store.Close()
}
