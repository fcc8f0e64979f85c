package profiler

import "errors"

// Failure kinds returned by [Profiler] operations. Callers classify them with
// [errors.Is]; only the command entry point decides which kinds end the
// process.
var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrMissingTool         = errors.New("required tool not found in PATH")
	ErrBuildFailed         = errors.New("build failed")
	ErrArtifactMissing     = errors.New("profiler executable missing after build")
	ErrInstall             = errors.New("install artifact")
	ErrRevert              = errors.New("revert vendored source")
	ErrLaunch              = errors.New("launch profiler")
	ErrInvalidConfig       = errors.New("invalid config")
)
