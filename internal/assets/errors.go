package assets

import "errors"

var (
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("build failed")
	// ErrNotBuilt indicates outputs were requested before a successful build
	ErrNotBuilt = errors.New("assets not built yet, call Build() first")
	// ErrUnknownEntry indicates the entry point is not configured
	ErrUnknownEntry = errors.New("entry point not found")
)
