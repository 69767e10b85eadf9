package stats

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpipe/internal/assets"
	"github.com/wolfeidau/assetpipe/internal/config"
)

func testResult() *assets.Result {
	return &assets.Result{
		Mode:    config.ModeProduction,
		Hash:    "f00dfeed",
		Modules: 7,
		Bundles: []assets.Bundle{
			{Entry: "app", File: "app.0123456789.js", Size: 2048},
		},
		Assets: []assets.Asset{
			{Source: "src/fonts/a.woff", Size: 100, Inlined: true},
			{Source: "src/fonts/b.ttf", File: "abc.ttf", Size: 20000},
			{Source: "src/model.obj", File: "def.obj", Size: 10, Passthrough: true},
		},
		Page:     "index.html",
		Warnings: []string{"generated page overwrites emitted file index.html"},
		Duration: 1234 * time.Millisecond,
	}
}

func TestReportVerbosity(t *testing.T) {
	tests := []struct {
		verbosity   string
		contains    []string
		notContains []string
	}{
		{
			verbosity:   config.StatsNone,
			notContains: []string{"built", "app"},
		},
		{
			verbosity:   config.StatsErrorsOnly,
			notContains: []string{"built"},
		},
		{
			verbosity:   config.StatsMinimal,
			contains:    []string{"built f00dfeed production in 1.234s", "1 warning(s)"},
			notContains: []string{"app.0123456789.js"},
		},
		{
			verbosity:   config.StatsNormal,
			contains:    []string{"app app.0123456789.js 2.0 kB", "warning generated page overwrites"},
			notContains: []string{"7 modules", "src/model.obj"},
		},
		{
			verbosity: config.StatsVerbose,
			contains: []string{
				"7 modules",
				"inline src/fonts/a.woff 100 B",
				"emit src/fonts/b.ttf abc.ttf 20 kB",
				"copy src/model.obj def.obj 10 B",
				"page index.html",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.verbosity, func(t *testing.T) {
			var buf bytes.Buffer
			p, err := New(&buf, tt.verbosity, true)
			require.NoError(t, err)

			p.Report(testResult(), nil)

			for _, s := range tt.contains {
				require.Contains(t, buf.String(), s)
			}
			for _, s := range tt.notContains {
				require.NotContains(t, buf.String(), s)
			}
			require.NotContains(t, buf.String(), "\x1b[")
		})
	}
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(&buf, config.StatsErrorsOnly, false)
	require.NoError(t, err)

	p.Report(nil, errors.New("could not resolve ./gone.js"))
	require.Equal(t, "build failed could not resolve ./gone.js\n", buf.String())

	buf.Reset()
	quiet, err := New(&buf, config.StatsNone, false)
	require.NoError(t, err)
	quiet.Report(nil, errors.New("boom"))
	require.Empty(t, buf.String())
}

func TestNewInvalidVerbosity(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", false)
	require.ErrorIs(t, err, config.ErrInvalidVerbosity)
}
