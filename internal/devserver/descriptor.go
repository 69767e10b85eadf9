// Package devserver serves build outputs during development: it describes
// the serving options, compresses and live-reloads pages, and rebuilds when
// watched sources change.
package devserver

import "github.com/wolfeidau/assetpipe/internal/config"

// Descriptor is the static record of how the development server behaves.
type Descriptor struct {
	// Compress enables gzip responses
	Compress bool
	// Inline injects the live reload client into served pages
	Inline bool
	// StatsVerbosity controls build output on the console
	StatsVerbosity string
	// Colors enables colored console output
	Colors bool
}

// NewDescriptor builds the descriptor from the dev server configuration.
func NewDescriptor(cfg config.DevServer) Descriptor {
	verbosity := cfg.Stats.Verbosity
	if verbosity == "" {
		verbosity = config.StatsNormal
	}
	return Descriptor{
		Compress:       cfg.Compress,
		Inline:         cfg.Inline,
		StatsVerbosity: verbosity,
		Colors:         cfg.Stats.Colors,
	}
}
