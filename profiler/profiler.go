package profiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/magefile/mage/sh"
)

const makeTool = "make"

var (
	// DefaultTools must all resolve on the search path before a build starts.
	DefaultTools = []string{"pkg-config", "make"}
	// DefaultMakeFlags skips the Wayland backend.
	DefaultMakeFlags = []string{"LEGACY=1"}
	// HintPackages are the system packages the upstream build usually needs.
	HintPackages = []string{"libglfw3-dev", "libcapstone-dev", "libdbus-glib-1-dev", "libfreetype-dev"}
)

var hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

// Profiler cleans, builds and launches the vendored Tracy profiler.
//
// Every operation works against the [Layout] given at construction and
// blocks until its child processes exit.
//
// Create instances with [New] or [Config.NewProfiler].
type Profiler struct {
	runner    Runner
	strategy  Strategy
	logger    *slog.Logger
	stdout    io.Writer
	stderr    io.Writer
	layout    Layout
	tools     []string
	makeFlags []string

	strictRevert bool
	styledHints  bool
}

// Option configures a [Profiler].
type Option func(*Profiler)

// WithRunner sets the [Runner] used for every external command.
func WithRunner(r Runner) Option {
	return func(p *Profiler) {
		p.runner = r
	}
}

// WithStrategy overrides the build strategy selected from the host GOOS.
func WithStrategy(s Strategy) Option {
	return func(p *Profiler) {
		p.strategy = s
	}
}

// WithLogger sets the logger for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Profiler) {
		p.logger = l
	}
}

// WithOutput sets where build logs, hints and the launched profiler write.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(p *Profiler) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// WithTools sets the tools that must be on the search path before a build.
func WithTools(tools ...string) Option {
	return func(p *Profiler) {
		p.tools = tools
	}
}

// WithMakeFlags sets the arguments passed to make ahead of -C.
func WithMakeFlags(flags ...string) Option {
	return func(p *Profiler) {
		p.makeFlags = flags
	}
}

// WithStrictRevert makes a failed git reset an error instead of a debug log.
func WithStrictRevert(strict bool) Option {
	return func(p *Profiler) {
		p.strictRevert = strict
	}
}

// WithStyledHints colors the dependency hint block.
func WithStyledHints(styled bool) Option {
	return func(p *Profiler) {
		p.styledHints = styled
	}
}

// New creates a [Profiler] for layout. The build strategy defaults to the one
// for [runtime.GOOS].
func New(layout Layout, opts ...Option) *Profiler {
	p := &Profiler{
		layout:    layout,
		runner:    ShellRunner{},
		strategy:  StrategyFor(runtime.GOOS),
		logger:    slog.Default(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		tools:     DefaultTools,
		makeFlags: DefaultMakeFlags,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Layout returns the paths p operates on.
func (p *Profiler) Layout() Layout {
	return p.layout
}

// Revert discards local modifications in the vendored source with
// "git reset --hard". A missing source directory is not an error.
func (p *Profiler) Revert(ctx context.Context) error {
	src := p.layout.Source
	if !exists(src) {
		return nil
	}

	err := p.runner.Exec(ctx, Command{
		Name: "git",
		Args: []string{"-C", src, "reset", "--hard"},
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRevert, src, err)
	}

	return nil
}

// Clean reverts the vendored source and removes the cache directory.
//
// A failed revert is only reported when strict revert is enabled.
func (p *Profiler) Clean(ctx context.Context) error {
	revertErr := p.revert(ctx)

	if !exists(p.layout.CacheDir) {
		return revertErr
	}

	p.logger.Debug("removing cache directory", slog.String("path", p.layout.CacheDir))

	err := sh.Rm(p.layout.CacheDir)
	if err != nil {
		return errors.Join(revertErr, fmt.Errorf("remove cache directory: %w", err))
	}

	return revertErr
}

// Build compiles the profiler and installs it into the cache directory.
func (p *Profiler) Build(ctx context.Context) error {
	p.logger.Debug("building tracy", slog.String("strategy", p.strategy.Name()))

	return p.strategy.Build(ctx, p)
}

// Run launches the installed profiler, building it first when it is missing.
// The profiler's own exit status is logged and otherwise ignored.
func (p *Profiler) Run(ctx context.Context) error {
	target := p.layout.Target

	if !exists(target) {
		p.logger.Info("tracy not found - building tracy")

		err := p.Build(ctx)
		if err != nil {
			p.logger.Error("failed to build tracy")

			return err
		}

		if !exists(target) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, target)
		}
	}

	p.logger.Info("tracy found", slog.String("path", target))

	err := makeExecutable(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	err = p.runner.Exec(ctx, Command{
		Name:   target,
		Stdout: p.stdout,
		Stderr: p.stderr,
	})
	if !Ran(err) {
		return fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	p.logger.Debug("tracy exited", slog.Int("status", ExitStatus(err)))

	return nil
}

// revert runs [Profiler.Revert] and swallows its failure unless strict revert
// is enabled.
func (p *Profiler) revert(ctx context.Context) error {
	err := p.Revert(ctx)
	if err == nil || p.strictRevert {
		return err
	}

	p.logger.Debug("ignoring revert failure", slog.Any("error", err))

	return nil
}

// cleanAfterFailure runs Clean on a build error path, where the build error
// is what gets reported.
func (p *Profiler) cleanAfterFailure(ctx context.Context) {
	err := p.Clean(ctx)
	if err != nil {
		p.logger.Warn("cleanup after failed build", slog.Any("error", err))
	}
}

// install copies the built artifact to the cache directory.
func (p *Profiler) install() error {
	l := p.layout

	err := os.MkdirAll(l.CacheDir, 0o755)
	if err != nil {
		return fmt.Errorf("%w: create cache directory: %w", ErrInstall, err)
	}

	err = sh.Copy(l.Target, l.Artifact)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}

	p.logger.Info("installed tracy", slog.String("path", l.Target))

	return nil
}

// writeHints prints the advisory list of system packages.
func (p *Profiler) writeHints() {
	pkgs := strings.Join(HintPackages, " ")
	lines := []string{
		"you may need to install " + strings.Join(HintPackages, ", "),
		"on ubuntu, you can run:",
		"sudo apt install " + pkgs,
	}

	body := strings.Join(lines, "\n")
	if p.styledHints {
		body = hintStyle.Render(body)
	}

	fmt.Fprintf(p.stdout, "\n\n%s\n\n\n", body)
}

func makeExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err //nolint:wrapcheck // Callers add context.
	}

	//nolint:wrapcheck // Callers add context.
	return os.Chmod(path, info.Mode()|0o100)
}
