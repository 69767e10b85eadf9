package assets

import (
	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/transform"
)

type Options struct {
	// Mode selects minification, source maps and transform debug defaults
	Mode config.Mode
	// Compiler compiles Elm modules; nil uses `elm make`
	Compiler transform.Compiler
	// Write controls whether outputs are written to the output directory
	Write bool
}

// buildFlags are the esbuild settings that follow from the mode.
type buildFlags struct {
	minify    bool
	sourceMap api.SourceMap
	nodeEnv   string
}

func flagsForMode(mode config.Mode) buildFlags {
	if mode.Debug() {
		return buildFlags{
			minify:    false,
			sourceMap: api.SourceMapInline,
			nodeEnv:   `"development"`,
		}
	}
	return buildFlags{
		minify:    true,
		sourceMap: api.SourceMapNone,
		nodeEnv:   `"production"`,
	}
}
