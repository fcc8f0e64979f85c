// Package profiler builds, cleans and launches the Tracy profiler from the
// copy of its source vendored under third_party/tracy.
//
// A [Profiler] works against a fixed [Layout]: the vendored source, the
// build directory inside it, and a disposable cache directory (.tracy) that
// holds the installed executable. External work goes through a [Runner]
// (git, make, and the profiler itself); builds go through a [Strategy]
// chosen once from the target GOOS.
//
// Typical usage wires a [Config] into a cobra command:
//
//	cfg := profiler.NewConfig()
//	cfg.RegisterFlags(rootCmd.PersistentFlags())
//
//	// after flag parsing
//	err := cfg.Load(rootCmd.PersistentFlags())
//	p, err := cfg.NewProfiler(profiler.WithLogger(logger))
//	err = p.Run(ctx)
//
// Operations return one of the sentinel errors ([ErrMissingTool],
// [ErrBuildFailed], [ErrUnsupportedPlatform], ...). None of them exit the
// process; that decision belongs to the caller.
package profiler
