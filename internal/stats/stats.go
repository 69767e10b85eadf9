// Package stats prints build results to the console at the configured
// verbosity.
package stats

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/wolfeidau/assetpipe/internal/assets"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/logger"
)

var levels = map[string]int{
	config.StatsNone:       0,
	config.StatsErrorsOnly: 1,
	config.StatsMinimal:    2,
	config.StatsNormal:     3,
	config.StatsVerbose:    4,
}

type styles struct {
	title   lipgloss.Style
	hash    lipgloss.Style
	file    lipgloss.Style
	size    lipgloss.Style
	dim     lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	success lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("170")),
		hash:    r.NewStyle().Foreground(lipgloss.Color("241")),
		file:    r.NewStyle().Foreground(lipgloss.Color("75")),
		size:    r.NewStyle().Foreground(lipgloss.Color("252")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("241")),
		warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		success: r.NewStyle().Foreground(lipgloss.Color("42")),
	}
}

// Printer writes build summaries.
type Printer struct {
	out    io.Writer
	level  int
	styles styles
}

// New returns a printer for the verbosity. Colors are only used when out
// is a terminal.
func New(out io.Writer, verbosity string, colors bool) (*Printer, error) {
	level, ok := levels[verbosity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidVerbosity, verbosity)
	}

	renderer := lipgloss.NewRenderer(out)
	if !colors || !logger.IsTerminal(out) {
		renderer.SetColorProfile(termenv.Ascii)
	}

	return &Printer{out: out, level: level, styles: newStyles(renderer)}, nil
}

// Report prints the outcome of a build.
func (p *Printer) Report(result *assets.Result, err error) {
	if err != nil {
		if p.level >= levels[config.StatsErrorsOnly] {
			fmt.Fprintf(p.out, "%s %s\n", p.styles.failure.Render("build failed"), err)
		}
		return
	}

	if p.level < levels[config.StatsMinimal] || result == nil {
		return
	}

	fmt.Fprintf(p.out, "%s %s %s in %s\n",
		p.styles.success.Render("built"),
		p.styles.hash.Render(result.Hash),
		result.Mode,
		result.Duration.Round(time.Millisecond),
	)

	if p.level == levels[config.StatsMinimal] {
		if len(result.Warnings) > 0 {
			fmt.Fprintln(p.out, p.styles.warning.Render(fmt.Sprintf("%d warning(s)", len(result.Warnings))))
		}
		return
	}

	for _, b := range result.Bundles {
		fmt.Fprintf(p.out, "  %s %s %s\n",
			p.styles.title.Render(b.Entry),
			p.styles.file.Render(b.File),
			p.styles.size.Render(humanize.Bytes(uint64(b.Size))),
		)
		for _, style := range b.Styles {
			fmt.Fprintf(p.out, "    %s\n", p.styles.file.Render(style))
		}
	}

	if p.level >= levels[config.StatsVerbose] {
		fmt.Fprintf(p.out, "  %s\n", p.styles.dim.Render(fmt.Sprintf("%d modules", result.Modules)))
		for _, a := range result.Assets {
			fmt.Fprintf(p.out, "  %s %s %s\n",
				p.styles.dim.Render(assetKind(a)),
				a.Source,
				p.styles.size.Render(describeAsset(a)),
			)
		}
		if result.Page != "" {
			fmt.Fprintf(p.out, "  %s %s\n", p.styles.dim.Render("page"), p.styles.file.Render(result.Page))
		}
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(p.out, "%s %s\n", p.styles.warning.Render("warning"), w)
	}
}

func assetKind(a assets.Asset) string {
	switch {
	case a.Inlined:
		return "inline"
	case a.Passthrough:
		return "copy"
	default:
		return "emit"
	}
}

func describeAsset(a assets.Asset) string {
	size := humanize.Bytes(uint64(a.Size))
	if a.File == "" {
		return size
	}
	return strings.Join([]string{a.File, size}, " ")
}
