// Command tracyctl builds, cleans and launches the Tracy profiler vendored
// under a project's third_party/tracy directory.
//
// # Usage
//
//	tracyctl [flags] [clean|build|run]
//
// With no subcommand tracyctl behaves like "tracyctl run": it launches the
// profiler from the .tracy cache directory, building it first if needed.
//
// # Exit status
//
// clean always exits 0. build exits 0 even when the build fails; only an
// unsupported platform or a failed install exits 1. run exits 1 when the
// profiler cannot be built or launched. The profiler's own exit status is
// not propagated.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"go.jacobcolvin.com/tracyctl/log"
	"go.jacobcolvin.com/tracyctl/profiler"
	"go.jacobcolvin.com/tracyctl/version"
)

func main() {
	format := log.FormatLogfmt
	if term.IsTerminal(int(os.Stderr.Fd())) {
		format = log.FormatText
	}

	a := newApp(os.Stdout, os.Stderr, format,
		profiler.WithStyledHints(term.IsTerminal(int(os.Stdout.Fd()))),
	)

	os.Exit(a.run(context.Background(), os.Args[1:]))
}

// app carries the state shared by all subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer
	logCfg *log.Config
	cfg    *profiler.Config
	logger *slog.Logger
	opts   []profiler.Option
}

func newApp(stdout, stderr io.Writer, format log.Format, opts ...profiler.Option) *app {
	logCfg := log.NewConfig()
	logCfg.DefaultFormat = format

	return &app{
		stdout: stdout,
		stderr: stderr,
		logCfg: logCfg,
		cfg:    profiler.NewConfig(),
		opts:   opts,
	}
}

// run executes the CLI and returns the process exit status.
func (a *app) run(ctx context.Context, args []string) int {
	rootCmd := a.newRootCmd()
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if a.logger != nil {
			a.logger.Error("tracyctl failed", slog.Any("error", err))
		} else {
			fmt.Fprintf(a.stderr, "%v\n", err)
		}

		return 1
	}

	return 0
}

func (a *app) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tracyctl",
		Short: "Build, clean and run the vendored Tracy profiler",
		Long: `tracyctl builds the Tracy profiler from third_party/tracy with make, caches
the executable in .tracy, and launches it. Running without a subcommand is the
same as "tracyctl run".`,
		Version:       version.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          a.runE,
	}

	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)
	rootCmd.SetVersionTemplate("{{ .Version }}\n")

	flags := rootCmd.PersistentFlags()
	a.logCfg.RegisterFlags(flags)
	a.cfg.RegisterFlags(flags)

	for _, register := range []func(*cobra.Command) error{
		a.logCfg.RegisterCompletions,
		a.cfg.RegisterCompletions,
	} {
		err := register(rootCmd)
		if err != nil {
			fmt.Fprintf(a.stderr, "register completions: %v\n", err)
		}
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "clean",
			Short: "Revert the vendored source and delete the cache directory",
			Args:  cobra.NoArgs,
			RunE:  a.cleanE,
		},
		&cobra.Command{
			Use:   "build",
			Short: "Build the profiler and copy it into the cache directory",
			Args:  cobra.NoArgs,
			RunE:  a.buildE,
		},
		&cobra.Command{
			Use:   "run",
			Short: "Launch the profiler, building it first if needed",
			Args:  cobra.NoArgs,
			RunE:  a.runE,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())

				return err //nolint:wrapcheck // Writing to stdout.
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON Schema of the " + profiler.DefaultConfigFile + " config file",
			Args:  cobra.NoArgs,
			RunE:  a.schemaE,
		},
	)

	return rootCmd
}

// setup builds the logger and the profiler once flags are parsed.
func (a *app) setup(cmd *cobra.Command) (*profiler.Profiler, error) {
	logger, err := a.logCfg.NewLogger(a.stderr)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped by the log package.
	}

	a.logger = logger

	err = a.cfg.Load(cmd.Flags())
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped by the profiler package.
	}

	opts := append([]profiler.Option{
		profiler.WithLogger(logger),
		profiler.WithOutput(a.stdout, a.stderr),
	}, a.opts...)

	return a.cfg.NewProfiler(opts...) //nolint:wrapcheck // Already wrapped by the profiler package.
}

func (a *app) cleanE(cmd *cobra.Command, _ []string) error {
	p, err := a.setup(cmd)
	if err != nil {
		return err
	}

	err = p.Clean(cmd.Context())
	if err != nil {
		a.logger.Warn("clean incomplete", slog.Any("error", err))
	}

	return nil
}

func (a *app) buildE(cmd *cobra.Command, _ []string) error {
	p, err := a.setup(cmd)
	if err != nil {
		return err
	}

	err = p.Build(cmd.Context())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, profiler.ErrUnsupportedPlatform), errors.Is(err, profiler.ErrInstall):
		return err
	}

	a.logger.Error("build failed", slog.Any("error", err))

	return nil
}

func (a *app) runE(cmd *cobra.Command, _ []string) error {
	p, err := a.setup(cmd)
	if err != nil {
		return err
	}

	return p.Run(cmd.Context()) //nolint:wrapcheck // Sentinel errors are matched in tests.
}

func (a *app) schemaE(cmd *cobra.Command, _ []string) error {
	s, err := profiler.Schema()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped by the profiler package.
	}

	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	out = append(out, '\n')

	_, err = cmd.OutOrStdout().Write(out)

	return err //nolint:wrapcheck // Writing to stdout.
}
