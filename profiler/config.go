package profiler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// DefaultConfigFile is looked up under the project root when no config file
// is given explicitly.
const DefaultConfigFile = ".tracyctl.yaml"

// Flags holds CLI flag names for profiler configuration, allowing callers to
// customize flag names while keeping sensible defaults via [NewConfig].
type Flags struct {
	Root         string
	ConfigFile   string
	Source       string
	CacheDir     string
	MakeFlags    string
	Tools        string
	StrictRevert string
}

// NewConfig creates a new [Config] embedding these flag names.
func (f Flags) NewConfig() *Config {
	return &Config{
		Flags:     f,
		GOOS:      runtime.GOOS,
		Source:    DefaultSourceDir,
		CacheDir:  DefaultCacheDir,
		MakeFlags: DefaultMakeFlags,
		Tools:     DefaultTools,
	}
}

// Config holds profiler settings from CLI flags and the optional YAML config
// file. Flags given on the command line win over the file.
//
// Create instances with [NewConfig] and register CLI flags with
// [Config.RegisterFlags]. Call [Config.Load] after flag parsing, then
// [Config.NewProfiler].
type Config struct {
	Flags Flags `json:"-" yaml:"-"`

	// Root is the project root. Relative paths resolve against it.
	Root string `json:"-" yaml:"-"`
	// ConfigFile is the YAML file to read. Empty means
	// <root>/.tracyctl.yaml, if present.
	ConfigFile string `json:"-" yaml:"-"`
	// GOOS selects the build strategy and target file name.
	GOOS string `json:"-" yaml:"-"`

	Source       string   `json:"source,omitempty"        jsonschema:"vendored Tracy checkout, relative to the project root" yaml:"source,omitempty"`
	CacheDir     string   `json:"cache_dir,omitempty"     jsonschema:"directory holding the built profiler, relative to the project root" yaml:"cache_dir,omitempty"`
	MakeFlags    []string `json:"make_flags,omitempty"    jsonschema:"arguments passed to make before -C" yaml:"make_flags,omitempty"`
	Tools        []string `json:"tools,omitempty"         jsonschema:"tools that must be on PATH before building" yaml:"tools,omitempty"`
	StrictRevert bool     `json:"strict_revert,omitempty" jsonschema:"fail when git reset of the vendored source fails" yaml:"strict_revert,omitempty"`
}

// NewConfig returns a new [Config] with default flag names and values.
func NewConfig() *Config {
	f := Flags{
		Root:         "root",
		ConfigFile:   "config",
		Source:       "source",
		CacheDir:     "cache-dir",
		MakeFlags:    "make-flag",
		Tools:        "tool",
		StrictRevert: "strict-revert",
	}

	return f.NewConfig()
}

// RegisterFlags adds profiler flags to the given [*pflag.FlagSet].
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Root, c.Flags.Root, ".",
		"project root containing the vendored source")
	flags.StringVar(&c.ConfigFile, c.Flags.ConfigFile, "",
		"config file (default <root>/"+DefaultConfigFile+")")
	flags.StringVar(&c.Source, c.Flags.Source, c.Source,
		"vendored tracy source, relative to the root")
	flags.StringVar(&c.CacheDir, c.Flags.CacheDir, c.CacheDir,
		"cache directory for the built profiler, relative to the root")
	flags.StringArrayVar(&c.MakeFlags, c.Flags.MakeFlags, c.MakeFlags,
		"argument passed to make before -C (repeatable)")
	flags.StringSliceVar(&c.Tools, c.Flags.Tools, c.Tools,
		"tool required on PATH before building")
	flags.BoolVar(&c.StrictRevert, c.Flags.StrictRevert, false,
		"fail when git reset of the vendored source fails")
}

// RegisterCompletions registers shell completions for profiler flags on cmd.
func (c *Config) RegisterCompletions(cmd *cobra.Command) error {
	dirComp := func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveFilterDirs
	}

	for _, flag := range []string{c.Flags.Root, c.Flags.Source, c.Flags.CacheDir} {
		err := cmd.RegisterFlagCompletionFunc(flag, dirComp)
		if err != nil {
			return fmt.Errorf("registering %s completion: %w", flag, err)
		}
	}

	err := cmd.RegisterFlagCompletionFunc(c.Flags.ConfigFile,
		func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
		})
	if err != nil {
		return fmt.Errorf("registering %s completion: %w", c.Flags.ConfigFile, err)
	}

	err = cmd.RegisterFlagCompletionFunc(c.Flags.MakeFlags,
		cobra.FixedCompletions(DefaultMakeFlags, cobra.ShellCompDirectiveNoFileComp))
	if err != nil {
		return fmt.Errorf("registering %s completion: %w", c.Flags.MakeFlags, err)
	}

	err = cmd.RegisterFlagCompletionFunc(c.Flags.Tools,
		cobra.FixedCompletions(DefaultTools, cobra.ShellCompDirectiveNoFileComp))
	if err != nil {
		return fmt.Errorf("registering %s completion: %w", c.Flags.Tools, err)
	}

	return nil
}

// Load reads the config file and applies every value whose flag was not set
// on the command line. flags may be nil, in which case file values always
// apply. A missing default config file is not an error; a missing explicit
// one is.
func (c *Config) Load(flags *pflag.FlagSet) error {
	path := c.ConfigFile
	explicit := path != ""

	if !explicit {
		path = filepath.Join(c.Root, DefaultConfigFile)
	}

	data, err := os.ReadFile(path) //nolint:gosec // Config path from CLI flag is expected.
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var file Config

	err = yaml.UnmarshalWithOptions(data, &file, yaml.DisallowUnknownField())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	changed := func(name string) bool {
		return flags != nil && flags.Changed(name)
	}

	if file.Source != "" && !changed(c.Flags.Source) {
		c.Source = file.Source
	}

	if file.CacheDir != "" && !changed(c.Flags.CacheDir) {
		c.CacheDir = file.CacheDir
	}

	if file.MakeFlags != nil && !changed(c.Flags.MakeFlags) {
		c.MakeFlags = file.MakeFlags
	}

	if file.Tools != nil && !changed(c.Flags.Tools) {
		c.Tools = file.Tools
	}

	if file.StrictRevert && !changed(c.Flags.StrictRevert) {
		c.StrictRevert = true
	}

	return nil
}

// Layout resolves the configured paths against an absolute project root.
// Paths containing '$' are rejected, since [ShellRunner] would expand them
// from the environment.
func (c *Config) Layout() (Layout, error) {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return Layout{}, fmt.Errorf("%w: root: %w", ErrInvalidConfig, err)
	}

	l := NewLayout(root, c.GOOS)
	if c.Source != "" {
		l = l.WithSource(c.Source)
	}

	if c.CacheDir != "" {
		l = l.WithCacheDir(c.CacheDir, c.GOOS)
	}

	for _, path := range []string{l.Root, l.Source, l.CacheDir} {
		if strings.Contains(path, "$") {
			return Layout{}, fmt.Errorf("%w: path %q contains '$'", ErrInvalidConfig, path)
		}
	}

	return l, nil
}

// NewProfiler creates a [Profiler] using this [Config]. opts are applied
// after the configured values, so callers can inject a logger, runner or
// output writers.
func (c *Config) NewProfiler(opts ...Option) (*Profiler, error) {
	l, err := c.Layout()
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithStrategy(StrategyFor(c.GOOS)),
		WithMakeFlags(c.MakeFlags...),
		WithTools(c.Tools...),
		WithStrictRevert(c.StrictRevert),
	}

	return New(l, append(base, opts...)...), nil
}

// Schema returns the JSON Schema describing the config file.
func Schema() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[Config](nil)
	if err != nil {
		return nil, fmt.Errorf("generate config schema: %w", err)
	}

	s.Title = DefaultConfigFile

	return s, nil
}
