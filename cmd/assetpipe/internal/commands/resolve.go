package commands

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/wolfeidau/assetpipe/internal/rules"
)

type ResolveCmd struct {
	Paths []string `arg:"" name:"path" help:"asset paths to resolve"`
	Size  int64    `help:"asset size in bytes; read from the file when negative" default:"-1"`
	All   bool     `help:"show the decision of every rule, not only those that apply" default:"false"`
}

func (c *ResolveCmd) Run(ctx context.Context, globals *Globals) error {
	globals.setupLogger()

	cfg, _ := globals.loadConfig()

	matcher, err := rules.Compile(cfg.Rules)
	if err != nil {
		return err
	}

	out := globals.stdout()
	for _, path := range c.Paths {
		asset := rules.Asset{Path: path, Size: c.Size}
		if asset.Size < 0 {
			if info, err := os.Stat(stripQuery(path)); err == nil {
				asset.Size = info.Size()
			}
		}
		c.print(out, matcher, asset)
	}
	return nil
}

func (c *ResolveCmd) print(out io.Writer, matcher *rules.Matcher, asset rules.Asset) {
	size := "size unknown"
	if asset.Size >= 0 {
		size = humanize.Bytes(uint64(asset.Size))
	}
	fmt.Fprintf(out, "%s (%s)\n", asset.Path, size)

	writer := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	defer writer.Flush()

	if c.All {
		for _, e := range matcher.Explain(asset) {
			fmt.Fprintf(writer, "  %s\t%s\t%s\n", e.Category, e.Rule, e.Decision)
		}
		return
	}

	matches := matcher.Match(asset)
	if len(matches) == 0 {
		fmt.Fprintln(writer, "  no rule matched, passed through unchanged")
		return
	}
	for _, m := range matches {
		fmt.Fprintf(writer, "  %s\t%s\t%s\n", m.Category, m.Rule, formatTransforms(m.Transforms))
	}
}

func formatTransforms(transforms []rules.Transform) string {
	parts := make([]string, 0, len(transforms))
	for _, t := range transforms {
		if len(t.Options) == 0 {
			parts = append(parts, t.Name)
			continue
		}
		opts := make([]string, 0, len(t.Options))
		for _, k := range slices.Sorted(maps.Keys(t.Options)) {
			opts = append(opts, fmt.Sprintf("%s=%v", k, t.Options[k]))
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", t.Name, strings.Join(opts, ",")))
	}
	return strings.Join(parts, " -> ")
}

func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}
