package assets

import "errors"

var (
	// ErrNoEntryPoints indicates no entry point matched the configured patterns
	ErrNoEntryPoints = errors.New("no entry points found")
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("esbuild failed with errors")
	// ErrNotBuilt indicates results were requested before a build completed
	ErrNotBuilt = errors.New("assets not built yet, call Build() first")
	// ErrUnsafeOutputDir indicates a clean was requested for the working directory or filesystem root
	ErrUnsafeOutputDir = errors.New("refusing to clean output directory")
)
