package assets

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/naming"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	// ManifestFilename maps entries and assets to their output files
	ManifestFilename = "manifest.json"
	// MetafileFilename holds esbuild's metafile for bundle analysis
	MetafileFilename = "meta.json"
)

// Build bundles every entry point, writes the outputs when configured to
// and records the result for LoadScripts and Handler.
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	metrics := telemetry.GetMetrics()
	modeAttr := metric.WithAttributes(attribute.String("mode", p.opts.Mode.String()))

	ctx, span := telemetry.Tracer().Start(ctx, "assets.Build")
	defer span.End()

	metrics.BuildsTotal.Add(ctx, 1, modeAttr)

	log.Info().Strs("entries", p.config.EntryNames()).Str("mode", p.opts.Mode.String()).Msg("Building assets")

	result, files, err := p.build(ctx)
	if err != nil {
		metrics.BuildErrorsTotal.Add(ctx, 1, modeAttr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if p.opts.Write {
		if err := writeFiles(p.outDir, files); err != nil {
			metrics.BuildErrorsTotal.Add(ctx, 1, modeAttr)
			return nil, err
		}
	}

	result.Duration = time.Since(started)

	for _, b := range result.Bundles {
		metrics.BundleBytesTotal.Add(ctx, int64(b.Size), modeAttr)
		log.Info().Str("entry", b.Entry).Str("file", b.File).Int("size", b.Size).Msg("Built bundle")
	}
	for _, a := range result.Assets {
		switch {
		case a.Inlined:
			metrics.AssetsInlined.Add(ctx, 1, modeAttr)
		case a.Passthrough:
			metrics.AssetsPassthrough.Add(ctx, 1, modeAttr)
			metrics.AssetsEmitted.Add(ctx, 1, modeAttr)
		default:
			metrics.AssetsEmitted.Add(ctx, 1, modeAttr)
		}
	}
	for _, w := range result.Warnings {
		log.Warn().Msg(w)
	}
	metrics.BuildDuration.Record(ctx, float64(result.Duration.Milliseconds()), modeAttr)
	span.SetAttributes(attribute.String("build.hash", result.Hash))

	p.result = result
	p.files = files

	return result, nil
}

func (p *Pipeline) build(ctx context.Context) (*Result, map[string][]byte, error) {
	if len(p.config.Entries) == 0 {
		return nil, nil, config.ErrNoEntries
	}

	state := newBuildState()
	flags := flagsForMode(p.opts.Mode)

	entryPoints := make([]api.EntryPoint, 0, len(p.config.Entries))
	for _, entry := range p.config.Entries {
		entryPoints = append(entryPoints, api.EntryPoint{
			InputPath:  entryPrefix + entry.Name,
			OutputPath: entry.Name,
		})
	}

	br := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       p.context,
		Bundle:              true,
		Write:               false,
		Outdir:              p.outDir,
		Format:              api.FormatIIFE,
		Platform:            api.PlatformBrowser,
		MinifyWhitespace:    flags.minify,
		MinifyIdentifiers:   flags.minify,
		MinifySyntax:        flags.minify,
		Sourcemap:           flags.sourceMap,
		Define:              map[string]string{"process.env.NODE_ENV": flags.nodeEnv},
		Metafile:            true,
		LogLevel:            api.LogLevelSilent,
		Plugins:             []api.Plugin{p.plugin(ctx, state)},
	})

	if len(br.Errors) > 0 {
		for _, msg := range br.Errors {
			log.Error().Str("error", formatMessage(msg)).Msg("Build error")
		}
		return nil, nil, fmt.Errorf("%w: %s", ErrBuildFailed, formatMessages(br.Errors))
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(br.Metafile), &metadata); err != nil {
		return nil, nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	outputs := make(map[string][]byte, len(br.OutputFiles))
	for _, file := range br.OutputFiles {
		outputs[file.Path] = file.Contents
	}

	result := &Result{Mode: p.opts.Mode, Modules: len(metadata.Inputs), Warnings: slices.Clone(state.warnings)}
	for _, msg := range br.Warnings {
		result.Warnings = append(result.Warnings, formatMessage(msg))
	}

	// every output and emitted file feeds the build hash
	var digests []string
	type bundleOutput struct {
		entry    string
		js, css  []byte
		jsDigest string
	}
	bundles := make([]bundleOutput, 0, len(p.config.Entries))
	for _, entry := range p.config.Entries {
		js, ok := outputs[filepath.Join(p.outDir, entry.Name+".js")]
		if !ok {
			return nil, nil, fmt.Errorf("%w: no output for entry %q", ErrBuildFailed, entry.Name)
		}
		b := bundleOutput{entry: entry.Name, js: js, jsDigest: p.namer.Digest(js)}
		digests = append(digests, b.jsDigest)

		if css, ok := outputs[filepath.Join(p.outDir, entry.Name+".css")]; ok {
			b.css = css
			digests = append(digests, p.namer.Digest(css))
		}
		bundles = append(bundles, b)
	}

	emittedPaths := slices.Sorted(maps.Keys(state.emitted))
	for _, path := range emittedPaths {
		digests = append(digests, p.namer.Digest(state.emitted[path].Contents))
	}

	result.Hash = p.namer.BuildHash(digests...)

	files := make(map[string][]byte)
	for _, path := range emittedPaths {
		files[path] = state.emitted[path].Contents
	}

	for _, b := range bundles {
		name, err := p.namer.Name(p.config.Output.Filename, naming.Tokens{
			Name:        b.entry,
			Ext:         "js",
			ChunkHash:   b.jsDigest,
			ContentHash: b.jsDigest,
			Hash:        result.Hash,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("entry %q: %w", b.entry, err)
		}
		name = filepath.ToSlash(name)

		bundle := Bundle{Entry: b.entry, File: name, Digest: b.jsDigest, Size: len(b.js)}
		files[name] = b.js

		if b.css != nil {
			styleName, err := p.namer.Name(styleTemplate(p.config.Output.Filename), naming.Tokens{
				Name:        b.entry,
				Ext:         "css",
				ChunkHash:   b.jsDigest,
				ContentHash: p.namer.Digest(b.css),
				Hash:        result.Hash,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("entry %q: %w", b.entry, err)
			}
			styleName = filepath.ToSlash(styleName)
			bundle.Styles = append(bundle.Styles, styleName)
			files[styleName] = b.css
		}

		result.Bundles = append(result.Bundles, bundle)
	}

	result.Assets = slices.SortedFunc(maps.Values(state.assets), func(a, b Asset) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.File, b.File))
	})
	for i := range result.Assets {
		if rel, err := filepath.Rel(p.context, result.Assets[i].Source); err == nil && !strings.HasPrefix(rel, "..") {
			result.Assets[i].Source = filepath.ToSlash(rel)
		}
	}

	if p.config.HTML != nil {
		page, err := p.renderPage(result)
		if err != nil {
			return nil, nil, err
		}
		filename := p.config.HTML.Filename
		if _, ok := files[filename]; ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("generated page overwrites emitted file %s", filename))
		}
		files[filename] = page
		result.Page = filename
	}

	manifest, err := json.MarshalIndent(newManifest(result, p.config.Output.PublicPath), "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	files[ManifestFilename] = manifest
	files[MetafileFilename] = []byte(br.Metafile)

	return result, files, nil
}

// styleTemplate derives the stylesheet template from the script template.
func styleTemplate(filename string) string {
	if strings.HasSuffix(filename, ".js") {
		return strings.TrimSuffix(filename, ".js") + ".css"
	}
	if strings.HasSuffix(filename, "[ext]") {
		return filename
	}
	return filename + ".css"
}

func writeFiles(outDir string, files map[string][]byte) error {
	for _, name := range slices.Sorted(maps.Keys(files)) {
		path := filepath.Join(outDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(path, files[name], 0644); err != nil { //nolint:gosec
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Debug().Str("file", path).Int("size", len(files[name])).Msg("Wrote file")
	}
	return nil
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}

func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, formatMessage(msg))
	}
	return strings.Join(parts, "; ")
}
