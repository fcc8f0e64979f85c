package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/tracyctl/log"
	"go.jacobcolvin.com/tracyctl/profiler"
	"go.jacobcolvin.com/tracyctl/version"
)

type fakeRunner struct {
	missing map[string]bool
	exec    func(cmd profiler.Command) error
	calls   []string
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
	f.calls = append(f.calls, cmd.Name)
	f.mu.Unlock()

	if f.exec != nil {
		return f.exec(cmd)
	}

	return nil
}

type testEnv struct {
	runner *fakeRunner
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	layout profiler.Layout
	root   string
}

func newTestEnv(t *testing.T, r *fakeRunner) *testEnv {
	t.Helper()

	root := t.TempDir()

	return &testEnv{
		runner: r,
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		layout: profiler.NewLayout(root, "linux"),
		root:   root,
	}
}

// run executes tracyctl with a Linux build strategy and the fake runner.
func (e *testEnv) run(t *testing.T, args ...string) int {
	t.Helper()

	a := newApp(e.stdout, e.stderr, log.FormatLogfmt,
		profiler.WithRunner(e.runner),
		profiler.WithStrategy(profiler.StrategyFor("linux")),
	)
	a.cfg.GOOS = "linux"

	return a.run(t.Context(), append([]string{"--root", e.root}, args...))
}

func makeProduces(l profiler.Layout) func(profiler.Command) error {
	return func(cmd profiler.Command) error {
		if cmd.Name != "make" {
			return nil
		}

		err := os.MkdirAll(l.BuildDir, 0o755)
		if err != nil {
			return err
		}

		return os.WriteFile(l.Artifact, []byte("tracy"), 0o644)
	}
}

func failMake(cmd profiler.Command) error {
	if cmd.Name == "make" {
		return &profiler.ExitError{Command: "make", Status: 2, Err: errors.New("exit status 2")}
	}

	return nil
}

func TestCleanEmptyProject(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, &fakeRunner{})

	assert.Equal(t, 0, e.run(t, "clean"))
	assert.Empty(t, e.runner.calls)

	entries, err := os.ReadDir(e.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCleanAlwaysExitsZero(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{exec: func(profiler.Command) error { return errors.New("git exploded") }}
	e := newTestEnv(t, r)
	require.NoError(t, os.MkdirAll(e.layout.Source, 0o755))
	require.NoError(t, os.MkdirAll(e.layout.CacheDir, 0o755))

	assert.Equal(t, 0, e.run(t, "--strict-revert", "clean"))
	assert.NoDirExists(t, e.layout.CacheDir)
	assert.Contains(t, e.stderr.String(), "clean incomplete")
}

func TestBuildExitCodes(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		runner     *fakeRunner
		wantCode   int
		wantTarget bool
		wantLog    string
	}{
		"success": {
			runner:     &fakeRunner{},
			wantCode:   0,
			wantTarget: true,
		},
		"missing tool": {
			runner:   &fakeRunner{missing: map[string]bool{"pkg-config": true}},
			wantCode: 0,
			wantLog:  "tool=pkg-config",
		},
		"make fails": {
			runner:   &fakeRunner{exec: failMake},
			wantCode: 0,
			wantLog:  "make failed to build tracy",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e := newTestEnv(t, tc.runner)
			if tc.runner.exec == nil {
				tc.runner.exec = makeProduces(e.layout)
			}

			assert.Equal(t, tc.wantCode, e.run(t, "build"))

			if tc.wantTarget {
				assert.FileExists(t, e.layout.Target)
			} else {
				assert.NoDirExists(t, e.layout.CacheDir)
			}

			assert.Contains(t, e.stderr.String(), tc.wantLog)
		})
	}
}

func TestBuildUnsupportedPlatform(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, &fakeRunner{})

	a := newApp(e.stdout, e.stderr, log.FormatLogfmt, profiler.WithRunner(e.runner))
	a.cfg.GOOS = "windows"

	code := a.run(t.Context(), []string{"--root", e.root, "build"})
	assert.Equal(t, 1, code)
	assert.Empty(t, e.runner.calls)
	assert.Contains(t, e.stderr.String(), "unsupported platform")
}

func TestRunExitCodes(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		runner    *fakeRunner
		args      []string
		installed bool
		source    bool
		wantCode  int
		wantCalls []string
	}{
		"installed, explicit run": {
			runner:    &fakeRunner{},
			args:      []string{"run"},
			installed: true,
			wantCode:  0,
			wantCalls: []string{"target"},
		},
		"installed, no arguments": {
			runner:    &fakeRunner{},
			installed: true,
			wantCode:  0,
			wantCalls: []string{"target"},
		},
		"builds on demand": {
			runner:    &fakeRunner{},
			wantCode:  0,
			wantCalls: []string{"make", "git", "target"},
		},
		"build fails without source": {
			runner:    &fakeRunner{exec: failMake},
			wantCode:  1,
			wantCalls: []string{"make"},
		},
		"build fails with source": {
			runner:    &fakeRunner{exec: failMake},
			source:    true,
			wantCode:  1,
			wantCalls: []string{"make", "git"},
		},
		"tool missing without source": {
			runner:    &fakeRunner{missing: map[string]bool{"make": true}},
			wantCode:  1,
			wantCalls: []string{},
		},
		"tool missing with source": {
			runner:    &fakeRunner{missing: map[string]bool{"make": true}},
			source:    true,
			wantCode:  1,
			wantCalls: []string{"git"},
		},
		"profiler exit status ignored": {
			runner: &fakeRunner{exec: func(profiler.Command) error {
				return &profiler.ExitError{Command: "tracy", Status: 9, Err: errors.New("exit status 9")}
			}},
			installed: true,
			wantCode:  0,
			wantCalls: []string{"target"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e := newTestEnv(t, tc.runner)
			if tc.runner.exec == nil {
				tc.runner.exec = makeProduces(e.layout)
			}

			if tc.source {
				require.NoError(t, os.MkdirAll(e.layout.Source, 0o755))
			}

			if tc.installed {
				require.NoError(t, os.MkdirAll(e.layout.CacheDir, 0o755))
				require.NoError(t, os.WriteFile(e.layout.Target, []byte("tracy"), 0o644))
			}

			assert.Equal(t, tc.wantCode, e.run(t, tc.args...))

			want := make([]string, 0, len(tc.wantCalls))
			for _, c := range tc.wantCalls {
				if c == "target" {
					c = e.layout.Target
				}

				want = append(want, c)
			}

			got := e.runner.calls
			if got == nil {
				got = []string{}
			}

			assert.Equal(t, want, got)
		})
	}
}

func TestConfigFile(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{}
	e := newTestEnv(t, r)

	cfg := "cache_dir: out/profiler\nmake_flags: [LEGACY=1, -j4]\n"
	require.NoError(t, os.WriteFile(filepath.Join(e.root, profiler.DefaultConfigFile), []byte(cfg), 0o644))

	var args []string

	r.exec = func(cmd profiler.Command) error {
		if cmd.Name == "make" {
			args = cmd.Args
		}

		return nil
	}

	assert.Equal(t, 0, e.run(t, "build"))
	assert.Equal(t, []string{"LEGACY=1", "-j4", "-C", e.layout.BuildDir}, args)
}

func TestInvalidFlags(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		args    []string
		wantErr string
	}{
		"bad log level": {
			args:    []string{"--log-level=loud", "clean"},
			wantErr: "unknown log level",
		},
		"missing config file": {
			args:    []string{"--config=/nonexistent/tracyctl.yaml", "clean"},
			wantErr: "invalid config",
		},
		"dollar in source path": {
			args:    []string{"--source=deps/$TRACY", "build"},
			wantErr: "invalid config",
		},
		"unknown subcommand": {
			args:    []string{"profile"},
			wantErr: "unknown command",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e := newTestEnv(t, &fakeRunner{})

			assert.Equal(t, 1, e.run(t, tc.args...))
			assert.Contains(t, e.stderr.String(), tc.wantErr)
			assert.Empty(t, e.runner.calls)
		})
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, &fakeRunner{})

	assert.Equal(t, 0, e.run(t, "version"))
	assert.Equal(t, version.String()+"\n", e.stdout.String())
}

func TestSchemaCommand(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, &fakeRunner{})

	assert.Equal(t, 0, e.run(t, "schema"))

	var doc map[string]any

	require.NoError(t, json.Unmarshal(e.stdout.Bytes(), &doc))
	assert.Contains(t, doc, "properties")
}
