package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/picdock/engine/internal/config"
	"github.com/picdock/engine/internal/engine"
	"github.com/picdock/engine/internal/model"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagFetcher    string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// globalEngine is set by loadEngine in PersistentPreRunE and closed by
// main() after Execute returns, regardless of whether a command errored.
var globalEngine *engine.Engine

// CLIContext bundles the wired engine, its loaded config snapshot, and the
// resolved logger. Built once in PersistentPreRunE; every command reads it
// back out of the command's context instead of re-resolving paths.
type CLIContext struct {
	Engine *engine.Engine
	Cfg    model.UserConfig
	Logger *slog.Logger
	JSON   bool
	Quiet  bool
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics with an actionable
// message — a programmer error, since PersistentPreRunE always populates it
// before any RunE executes.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "picdock",
		Short:   "Multi-backend image upload engine",
		Long:    "picdock disperses local image files to several remote image-hosting backends in parallel, tracks per-backend progress, and persists a durable history of every attempt.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEngine(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path (default: platform data dir)")
	cmd.PersistentFlags().StringVar(&flagFetcher, "fetcher", "", "path to the fetcher sidecar binary (default: \"fetcher\" on PATH)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging (dispatch, retry, config resolution)")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newRetryCmd())
	cmd.AddCommand(newTestConnectionCmd())
	cmd.AddCommand(newListS3ObjectsCmd())
	cmd.AddCommand(newDeleteS3ObjectsCmd())
	cmd.AddCommand(newImageMetadataCmd())
	cmd.AddCommand(newSidecarCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadEngine resolves config/history/key paths, opens the composition root
// (internal/engine), loads the current UserConfig, and stores the result in
// the command's context for use by every subcommand.
func loadEngine(cmd *cobra.Command) error {
	logger := buildLogger()

	configPath := flagConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	opts := engine.Options{
		ConfigPath:  configPath,
		KeyPath:     config.DefaultKeyPath(),
		HistoryPath: config.DefaultHistoryPath(),
		FetcherPath: flagFetcher,
		Logger:      logger,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng, err := engine.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}

	globalEngine = eng

	cfg, err := eng.Config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cc := &CLIContext{
		Engine: eng,
		Cfg:    cfg,
		Logger: logger,
		JSON:   flagJSON,
		Quiet:  flagQuiet,
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger whose level is driven by the
// mutually-exclusive --verbose/--debug/--quiet flags. Defaults to Warn.
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
