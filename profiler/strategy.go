package profiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Strategy builds the profiler for one family of platforms.
type Strategy interface {
	Name() string
	Build(ctx context.Context, p *Profiler) error
}

// StrategyFor selects the build strategy for goos.
func StrategyFor(goos string) Strategy {
	switch goos {
	case "windows", "plan9":
		return unsupportedStrategy{goos: goos}
	}

	return unixStrategy{}
}

type unsupportedStrategy struct {
	goos string
}

func (s unsupportedStrategy) Name() string {
	return "unsupported"
}

func (s unsupportedStrategy) Build(_ context.Context, p *Profiler) error {
	p.logger.Error("tracy not supported on this platform, yet", slog.String("goos", s.goos))

	return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, s.goos)
}

// unixStrategy runs the upstream unix makefile.
type unixStrategy struct{}

func (unixStrategy) Name() string {
	return "unix"
}

func (unixStrategy) Build(ctx context.Context, p *Profiler) error {
	for _, tool := range p.tools {
		_, err := p.runner.LookPath(tool)
		if err != nil {
			p.logger.Error("required tool not found in PATH", slog.String("tool", tool))
			p.cleanAfterFailure(ctx)

			return fmt.Errorf("%w: %s", ErrMissingTool, tool)
		}
	}

	p.writeHints()

	l := p.layout
	args := append(append([]string{}, p.makeFlags...), "-C", l.BuildDir)

	p.logger.Debug("running make", slog.String("dir", l.BuildDir), slog.Any("args", args))

	// make reads the inherited stdin; the upstream makefile never prompts.
	err := p.runner.Exec(ctx, Command{
		Name:   makeTool,
		Args:   args,
		Stdout: p.stdout,
		Stderr: p.stderr,
	})
	if err != nil {
		status := ExitStatus(err)
		p.logger.Error("make failed to build tracy",
			slog.Int("status", status),
			slog.Any("error", err),
		)
		p.cleanAfterFailure(ctx)

		return fmt.Errorf("%w: make exited with status %d: %w", ErrBuildFailed, status, err)
	}

	if exists(l.Artifact) {
		err = p.install()
		if err != nil {
			return errors.Join(err, p.revert(ctx))
		}
	} else {
		p.logger.Warn("make succeeded but produced no executable", slog.String("path", l.Artifact))
	}

	return p.revert(ctx)
}

func exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
