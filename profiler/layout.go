package profiler

import (
	"path/filepath"
)

// Default locations, relative to the project root or the vendored source.
const (
	DefaultSourceDir = "third_party/tracy"
	DefaultCacheDir  = ".tracy"

	unixBuildDir     = "profiler/build/unix"
	unixArtifactName = "Tracy-release"
)

// Layout is the fixed set of paths every operation works against. It is
// computed once at startup and passed to the [Profiler]; nothing reads these
// paths from global state.
type Layout struct {
	// Root is the project root.
	Root string
	// Source is the vendored Tracy checkout.
	Source string
	// BuildDir is the directory handed to make with -C.
	BuildDir string
	// Artifact is the executable make leaves behind in BuildDir.
	Artifact string
	// CacheDir holds the installed executable. Safe to delete at any time.
	CacheDir string
	// Target is the installed executable inside CacheDir.
	Target string
}

// NewLayout returns the default layout under root. goos selects the target
// executable name.
func NewLayout(root, goos string) Layout {
	l := Layout{Root: root}
	l = l.WithSource(DefaultSourceDir)

	return l.WithCacheDir(DefaultCacheDir, goos)
}

// WithSource returns a copy of l using dir as the vendored source. Relative
// paths resolve against l.Root. BuildDir and Artifact follow the new source.
func (l Layout) WithSource(dir string) Layout {
	l.Source = l.resolve(dir)
	l.BuildDir = filepath.Join(l.Source, filepath.FromSlash(unixBuildDir))
	l.Artifact = filepath.Join(l.BuildDir, unixArtifactName)

	return l
}

// WithCacheDir returns a copy of l using dir as the cache directory. Relative
// paths resolve against l.Root. Target follows the new cache directory.
func (l Layout) WithCacheDir(dir, goos string) Layout {
	l.CacheDir = l.resolve(dir)
	l.Target = filepath.Join(l.CacheDir, TargetName(goos))

	return l
}

func (l Layout) resolve(dir string) string {
	dir = filepath.FromSlash(dir)
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}

	return filepath.Join(l.Root, dir)
}

// TargetName returns the installed executable's file name for goos.
func TargetName(goos string) string {
	if goos == "windows" {
		return "tracy.exe"
	}

	return "tracy"
}
