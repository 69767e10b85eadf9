package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// ErrStylesheet indicates esbuild rejected a stylesheet
var ErrStylesheet = errors.New("stylesheet error")

// applyCSS bundles a stylesheet: @import rules are inlined and url()
// references are handed to Env.ResolveURL so fonts and images go through
// their own rules. Production output is minified.
func applyCSS(ctx context.Context, env *Env, a *Artifact, _ Options) (*Artifact, error) {
	minify := !env.Mode.Debug()

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   string(a.Contents),
			ResolveDir: filepath.Dir(a.Source),
			Sourcefile: a.Source,
			Loader:     api.LoaderCSS,
		},
		Bundle:           true,
		Write:            false,
		LogLevel:         api.LogLevelSilent,
		MinifyWhitespace: minify,
		MinifySyntax:     minify,
		Plugins:          []api.Plugin{cssURLPlugin(ctx, env)},
	})

	for _, msg := range result.Warnings {
		log.Warn().Str("source", a.Source).Str("warning", msg.Text).Msg("Stylesheet warning")
	}

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%s: %w: %s", a.Source, ErrStylesheet, joinMessages(result.Errors))
	}

	if len(result.OutputFiles) == 0 {
		return nil, fmt.Errorf("%s: %w: no output", a.Source, ErrStylesheet)
	}

	out := *a
	out.Contents = result.OutputFiles[0].Contents
	out.Kind = KindCSS
	return &out, nil
}

func cssURLPlugin(ctx context.Context, env *Env) api.Plugin {
	return api.Plugin{
		Name: "assetpipe-css-url",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind != api.ResolveCSSURLToken {
					return api.OnResolveResult{}, nil
				}

				if env.ResolveURL == nil || IsExternalURL(args.Path) {
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				}

				ref, err := env.ResolveURL(ctx, args.ResolveDir, args.Path)
				if err != nil {
					return api.OnResolveResult{}, err
				}

				return api.OnResolveResult{Path: ref, External: true}, nil
			})
		},
	}
}

// IsExternalURL reports whether a reference points outside the build: an
// absolute or root-relative URL, a data URI or a fragment. Root-relative
// URLs address the server the page is served from, not the source tree.
func IsExternalURL(ref string) bool {
	return strings.HasPrefix(ref, "data:") ||
		strings.HasPrefix(ref, "#") ||
		strings.HasPrefix(ref, "/") ||
		strings.Contains(ref, "://")
}

func joinMessages(msgs []api.Message) string {
	texts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		text := msg.Text
		if msg.Location != nil {
			text = fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "; ")
}

const styleModule = `var css = %s;
if (typeof document !== "undefined") {
  var style = document.createElement("style");
  style.setAttribute("data-asset", %s);
  style.appendChild(document.createTextNode(css));
  document.head.appendChild(style);
}
export default css;
`

// applyStyle turns a stylesheet into a script module that injects it into
// the document when loaded.
func applyStyle(_ context.Context, _ *Env, a *Artifact, _ Options) (*Artifact, error) {
	if a.Kind != KindCSS && a.Kind != KindRaw {
		return nil, fmt.Errorf("%s: style expects a stylesheet, got %s", a.Source, a.Kind)
	}

	css, err := json.Marshal(string(a.Contents))
	if err != nil {
		return nil, err
	}

	name, err := json.Marshal(filepath.Base(a.Source))
	if err != nil {
		return nil, err
	}

	out := *a
	out.Contents = fmt.Appendf(nil, styleModule, css, name)
	out.Kind = KindJS
	return &out, nil
}
