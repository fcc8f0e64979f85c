package profiler_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/tracyctl/log"
	"go.jacobcolvin.com/tracyctl/profiler"
)

var artifactBytes = []byte("\x7fELF fake tracy build")

// fakeRunner records every command and answers LookPath from a fixed set.
type fakeRunner struct {
	missing map[string]bool
	exec    func(cmd profiler.Command) error
	calls   []profiler.Command
	mu      sync.Mutex
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.missing[name] {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}

	return "/usr/bin/" + name, nil
}

func (f *fakeRunner) Exec(_ context.Context, cmd profiler.Command) error {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if f.exec != nil {
		return f.exec(cmd)
	}

	return nil
}

func (f *fakeRunner) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.String())
	}

	return out
}

func (f *fakeRunner) ran(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.calls {
		if c.Name == name {
			return true
		}
	}

	return false
}

// makeProduces returns an exec func that writes the artifact when make runs.
func makeProduces(t *testing.T, l profiler.Layout) func(profiler.Command) error {
	t.Helper()

	return func(cmd profiler.Command) error {
		if cmd.Name != "make" {
			return nil
		}

		err := os.MkdirAll(l.BuildDir, 0o755)
		if err != nil {
			return err
		}

		return os.WriteFile(l.Artifact, artifactBytes, 0o644)
	}
}

func exitWith(status int) error {
	return &profiler.ExitError{Command: "fake", Status: status, Err: errors.New("fake exit")}
}

type harness struct {
	runner *fakeRunner
	p      *profiler.Profiler
	stdout *bytes.Buffer
	logs   *bytes.Buffer
	layout profiler.Layout
}

func newHarness(t *testing.T, r *fakeRunner, opts ...profiler.Option) *harness {
	t.Helper()

	l := profiler.NewLayout(t.TempDir(), "linux")
	h := &harness{
		runner: r,
		stdout: &bytes.Buffer{},
		logs:   &bytes.Buffer{},
		layout: l,
	}

	logger := slog.New(log.NewHandler(h.logs, log.LevelDebug, log.FormatLogfmt))

	base := []profiler.Option{
		profiler.WithRunner(r),
		profiler.WithStrategy(profiler.StrategyFor("linux")),
		profiler.WithLogger(logger),
		profiler.WithOutput(h.stdout, h.stdout),
	}

	h.p = profiler.New(l, append(base, opts...)...)

	return h
}

func mkdir(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
}

func writeFile(t *testing.T, path string, data []byte, mode os.FileMode) {
	t.Helper()
	mkdir(t, filepath.Dir(path))
	require.NoError(t, os.WriteFile(path, data, mode))
}
