package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/rules"
	"github.com/wolfeidau/assetpipe/internal/transform"
)

const entryPrefix = "assetpipe-entry:"

// scriptExtensions are loaded by esbuild itself unless a rule claims them.
var scriptExtensions = []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx", ".json"}

// buildState collects what transforms produce while esbuild runs. Load
// callbacks run concurrently.
type buildState struct {
	mu       sync.Mutex
	emitted  map[string]transform.Emitted
	assets   map[string]Asset
	warnings []string
}

func newBuildState() *buildState {
	return &buildState{
		emitted: make(map[string]transform.Emitted),
		assets:  make(map[string]Asset),
	}
}

func (s *buildState) record(a *transform.Artifact, passthrough bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range a.Emitted {
		if prev, ok := s.emitted[e.Path]; ok && string(prev.Contents) != string(e.Contents) {
			s.warnings = append(s.warnings, fmt.Sprintf("%s and %s both emit %s", prev.Source, e.Source, e.Path))
		}
		s.emitted[e.Path] = e

		s.assets[e.Source+"\x00"+e.Path] = Asset{
			Source:      e.Source,
			File:        e.Path,
			Size:        len(e.Contents),
			Passthrough: passthrough,
		}
	}

	if a.Inlined {
		s.assets[a.Source+"\x00inline"] = Asset{
			Source:  a.Source,
			Size:    len(a.Contents),
			Inlined: true,
		}
	}
}

func (s *buildState) warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

func (p *Pipeline) transformEnv() *transform.Env {
	return &transform.Env{
		Mode:          p.opts.Mode,
		Namer:         p.namer,
		AssetFilename: p.config.Output.AssetFilename,
		PublicPath:    p.config.Output.PublicPath,
	}
}

// Process runs the asset at path (which may carry a query string) through
// the rules. Assets no rule matches come back unchanged as KindRaw.
func (p *Pipeline) Process(ctx context.Context, env *transform.Env, path string) (*transform.Artifact, []rules.Match, error) {
	source := stripQuery(path)

	contents, err := os.ReadFile(source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read asset: %w", err)
	}

	in := &transform.Artifact{Source: source, Contents: contents, Kind: transform.KindRaw}

	matches := p.matcher.Match(rules.Asset{Path: path, Size: int64(len(contents))})
	if len(matches) == 0 {
		return in, nil, nil
	}

	var (
		primary *transform.Artifact
		emitted []transform.Emitted
	)
	for _, m := range matches {
		chain, err := p.registry.Chain(m.Transforms)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: %w", m.Rule, err)
		}

		out, err := chain.Run(ctx, env, in)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: %w", m.Rule, err)
		}

		log.Debug().Str("asset", path).Str("rule", m.Rule).Strs("transforms", chain.Names()).
			Str("kind", out.Kind.String()).Msg("Processed asset")

		emitted = append(emitted, out.Emitted...)
		if primary == nil || (primary.Kind == transform.KindReference && out.Kind != transform.KindReference) {
			primary = out
		}
	}

	result := *primary
	result.Emitted = emitted
	return &result, matches, nil
}

// resolveURL finalises a url() reference found in a stylesheet. stack holds
// the sources whose url() references are being resolved, outermost first.
// A stylesheet already on the stack is emitted unprocessed, which ends
// reference cycles.
func (p *Pipeline) resolveURL(state *buildState, stack []string) func(ctx context.Context, resolveDir, request string) (string, error) {
	return func(ctx context.Context, resolveDir, request string) (string, error) {
		path := filepath.Join(resolveDir, request)
		source := stripQuery(path)

		env := p.transformEnv()
		env.ResolveURL = p.resolveURL(state, append(slices.Clone(stack), source))

		var (
			out     *transform.Artifact
			matches []rules.Match
			err     error
		)
		if slices.Contains(stack, source) {
			state.warn(fmt.Sprintf("url() cycle %s -> %s, emitting %s unprocessed",
				strings.Join(stack, " -> "), source, source))
			out, err = rawArtifact(source)
		} else {
			out, matches, err = p.Process(ctx, env, path)
		}
		if err != nil {
			return "", err
		}

		// a stylesheet can only point at a file or an inlined reference, and
		// a script module in place of the file it came from is no use to it
		switch out.Kind {
		case transform.KindReference:
		case transform.KindJS:
			raw, err := rawArtifact(source)
			if err != nil {
				return "", err
			}
			raw.Emitted = out.Emitted
			if out, err = transform.Emit(env, raw, p.config.Output.AssetFilename); err != nil {
				return "", err
			}
		default:
			if out, err = transform.Emit(env, out, p.config.Output.AssetFilename); err != nil {
				return "", err
			}
		}

		state.record(out, len(matches) == 0)
		return out.Reference, nil
	}
}

func rawArtifact(source string) (*transform.Artifact, error) {
	contents, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	return &transform.Artifact{Source: source, Contents: contents, Kind: transform.KindRaw}, nil
}

func (p *Pipeline) plugin(ctx context.Context, state *buildState) api.Plugin {
	return api.Plugin{
		Name: "assetpipe",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + entryPrefix}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				return api.OnResolveResult{
					Path:      strings.TrimPrefix(args.Path, entryPrefix),
					Namespace: "assetpipe-entry",
				}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "assetpipe-entry"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				contents, err := p.entryModule(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				return api.OnLoadResult{
					Contents:   &contents,
					ResolveDir: p.context,
					Loader:     api.LoaderJS,
				}, nil
			})

			// stylesheets reaching esbuild have had their url() references finalised
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind == api.ResolveCSSURLToken {
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				}
				return api.OnResolveResult{}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				return p.load(ctx, state, args)
			})
		},
	}
}

func (p *Pipeline) entryModule(name string) (string, error) {
	for _, entry := range p.config.Entries {
		if entry.Name != name {
			continue
		}
		var b strings.Builder
		for _, source := range entry.Sources {
			quoted, err := json.Marshal(source)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "import %s;\n", quoted)
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("unknown entry %q", name)
}

func (p *Pipeline) load(ctx context.Context, state *buildState, args api.OnLoadArgs) (api.OnLoadResult, error) {
	request := args.Path + args.Suffix
	ext := strings.ToLower(filepath.Ext(args.Path))

	if slices.Contains(scriptExtensions, ext) && !p.hasMatch(args.Path, request) {
		return api.OnLoadResult{}, nil
	}

	env := p.transformEnv()
	env.ResolveURL = p.resolveURL(state, []string{args.Path})

	out, matches, err := p.Process(ctx, env, request)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	passthrough := len(matches) == 0
	if out.Kind == transform.KindRaw {
		if passthrough {
			log.Debug().Str("asset", request).Msg("No rule matched, passing asset through")
		}
		out, err = transform.Emit(env, out, p.config.Output.AssetFilename)
		if err != nil {
			return api.OnLoadResult{}, err
		}
	}

	state.record(out, passthrough)

	resolveDir := filepath.Dir(args.Path)

	switch out.Kind {
	case transform.KindJS:
		contents := string(out.Contents)
		return api.OnLoadResult{Contents: &contents, ResolveDir: resolveDir, Loader: api.LoaderJS}, nil
	case transform.KindCSS:
		contents := string(out.Contents)
		return api.OnLoadResult{Contents: &contents, ResolveDir: resolveDir, Loader: api.LoaderCSS}, nil
	default:
		ref, err := json.Marshal(out.Reference)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		contents := fmt.Sprintf("export default %s;\n", ref)
		return api.OnLoadResult{Contents: &contents, ResolveDir: resolveDir, Loader: api.LoaderJS}, nil
	}
}

func (p *Pipeline) hasMatch(path, request string) bool {
	info, err := os.Stat(path)
	size := int64(-1)
	if err == nil {
		size = info.Size()
	}
	return len(p.matcher.Match(rules.Asset{Path: request, Size: size})) > 0
}

func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}
