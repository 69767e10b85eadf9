package transform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/naming"
	"github.com/wolfeidau/assetpipe/internal/rules"
)

type fakeCompiler struct {
	calls  []bool
	output string
	err    error
}

func (f *fakeCompiler) Compile(_ context.Context, _ string, debug bool) ([]byte, error) {
	f.calls = append(f.calls, debug)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.output), nil
}

func testEnv(t *testing.T, mode config.Mode) *Env {
	t.Helper()
	namer, err := naming.New(naming.HashBlake3, naming.DigestHex, 8)
	require.NoError(t, err)
	return &Env{
		Mode:          mode,
		Namer:         namer,
		AssetFilename: config.DefaultAssetFilename,
		PublicPath:    "/",
	}
}

func run(t *testing.T, reg *Registry, env *Env, a *Artifact, transforms ...rules.Transform) *Artifact {
	t.Helper()
	chain, err := reg.Chain(transforms)
	require.NoError(t, err)
	out, err := chain.Run(context.Background(), env, a)
	require.NoError(t, err)
	return out
}

func TestChainUnknownTransform(t *testing.T) {
	reg := NewRegistry(nil)

	_, err := reg.Chain([]rules.Transform{{Name: "sass"}})
	require.ErrorIs(t, err, ErrUnknownTransform)

	err = reg.Validate([]config.RuleConfig{{Name: "x", Use: []config.TransformConfig{{Name: "sass"}}}})
	require.ErrorIs(t, err, ErrUnknownTransform)

	require.NoError(t, reg.Validate(config.Default().Rules))
}

func TestChainLoaderAliases(t *testing.T) {
	reg := NewRegistry(nil)

	chain, err := reg.Chain([]rules.Transform{{Name: "css-loader"}, {Name: "Style-Loader"}})
	require.NoError(t, err)
	require.Equal(t, []string{"css", "style"}, chain.Names())
}

func TestRawPassthrough(t *testing.T) {
	reg := NewRegistry(nil)
	in := &Artifact{Source: "/src/model.obj", Contents: []byte("v 0 0 0")}

	out := run(t, reg, testEnv(t, config.ModeDevelopment), in, rules.Transform{Name: "raw"})
	require.Equal(t, in, out)
}

func TestFileTransform(t *testing.T) {
	reg := NewRegistry(nil)
	env := testEnv(t, config.ModeDevelopment)
	in := &Artifact{Source: "/src/fonts/icons.ttf", Contents: []byte("font-bytes")}

	out := run(t, reg, env, in, rules.Transform{Name: "file"})
	require.Equal(t, KindReference, out.Kind)
	require.False(t, out.Inlined)
	require.Len(t, out.Emitted, 1)
	require.Regexp(t, `^[0-9a-f]{8}\.ttf$`, out.Emitted[0].Path)
	require.Equal(t, []byte("font-bytes"), out.Emitted[0].Contents)
	require.Equal(t, "/"+out.Emitted[0].Path, out.Reference)

	again := run(t, reg, env, &Artifact{Source: "/src/fonts/icons.ttf", Contents: []byte("font-bytes")}, rules.Transform{Name: "file"})
	require.Equal(t, out.Reference, again.Reference)

	named := run(t, reg, env, &Artifact{Source: "/src/index.html", Contents: []byte("<html>")},
		rules.Transform{Name: "file", Options: map[string]any{"name": "[name].[ext]"}})
	require.Equal(t, "index.html", named.Emitted[0].Path)
	require.Equal(t, "/index.html", named.Reference)
}

func TestURLTransform(t *testing.T) {
	reg := NewRegistry(nil)
	env := testEnv(t, config.ModeDevelopment)

	out := run(t, reg, env, &Artifact{Source: "/fonts/a.woff", Contents: []byte("abc")},
		rules.Transform{Name: "url", Options: map[string]any{"mimetype": "application/font-woff"}})
	require.True(t, out.Inlined)
	require.Empty(t, out.Emitted)
	require.Equal(t, "data:application/font-woff;base64,YWJj", out.Reference)

	over := run(t, reg, env, &Artifact{Source: "/fonts/a.woff", Contents: []byte("abcdef")},
		rules.Transform{Name: "url", Options: map[string]any{"limit": 5}})
	require.False(t, over.Inlined)
	require.Len(t, over.Emitted, 1)
}

func TestMimeType(t *testing.T) {
	require.Equal(t, "image/png", MimeType("/a/b.png"))
	require.Equal(t, "text/css", MimeType("x.css"))
	require.Equal(t, defaultMimeType, MimeType("Makefile"))
	require.Equal(t, defaultMimeType, MimeType("x.unknownext"))
}

func TestPublicURL(t *testing.T) {
	require.Equal(t, "/a.js", PublicURL("/", "a.js"))
	require.Equal(t, "/static/a.js", PublicURL("/static/", "a.js"))
	require.Equal(t, "https://cdn.example.com/a.js", PublicURL("https://cdn.example.com", "a.js"))
	require.Equal(t, "a.js", PublicURL("", "a.js"))
}

func TestCSSAndStyle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.css"), []byte("body { margin: 0; }\n"), 0600))

	source := filepath.Join(dir, "main.css")
	contents := `@import "./base.css";
@font-face { font-family: icons; src: url(./icons.woff?v=4.7.0); }
h1 { color: red; background: url(https://example.com/bg.png); }
`
	require.NoError(t, os.WriteFile(source, []byte(contents), 0600))

	var requests []string
	env := testEnv(t, config.ModeDevelopment)
	env.ResolveURL = func(_ context.Context, resolveDir, request string) (string, error) {
		require.Equal(t, dir, resolveDir)
		requests = append(requests, request)
		return "/icons.1234.woff", nil
	}

	reg := NewRegistry(nil)
	css := run(t, reg, env, &Artifact{Source: source, Contents: []byte(contents)}, rules.Transform{Name: "css"})
	require.Equal(t, KindCSS, css.Kind)
	require.Equal(t, []string{"./icons.woff?v=4.7.0"}, requests)
	require.Contains(t, string(css.Contents), "margin: 0")
	require.Contains(t, string(css.Contents), "/icons.1234.woff")
	require.Contains(t, string(css.Contents), "https://example.com/bg.png")

	js := run(t, reg, env, css, rules.Transform{Name: "style"})
	require.Equal(t, KindJS, js.Kind)
	require.Contains(t, string(js.Contents), `document.createElement("style")`)
	require.Contains(t, string(js.Contents), `"main.css"`)
	require.Contains(t, string(js.Contents), "export default css;")
}

func TestIsExternalURL(t *testing.T) {
	tests := []struct {
		ref      string
		external bool
	}{
		{ref: "https://example.com/bg.png", external: true},
		{ref: "//cdn.example.com/bg.png", external: true},
		{ref: "/images/logo.png", external: true},
		{ref: "data:image/png;base64,AAAA", external: true},
		{ref: "#clip", external: true},
		{ref: "./fonts/icons.woff", external: false},
		{ref: "fonts/icons.woff?v=4.7.0", external: false},
		{ref: "../images/logo.png", external: false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			require.Equal(t, tt.external, IsExternalURL(tt.ref))
		})
	}
}

func TestCSSMinifiedInProduction(t *testing.T) {
	reg := NewRegistry(nil)
	source := filepath.Join(t.TempDir(), "a.css")

	out := run(t, reg, testEnv(t, config.ModeProduction),
		&Artifact{Source: source, Contents: []byte("h1 {\n  color: red;\n}\n")},
		rules.Transform{Name: "css"})
	require.Equal(t, "h1{color:red}", strings.TrimSpace(string(out.Contents)))
}

func TestCSSError(t *testing.T) {
	reg := NewRegistry(nil)
	chain, err := reg.Chain([]rules.Transform{{Name: "css"}})
	require.NoError(t, err)

	source := filepath.Join(t.TempDir(), "broken.css")
	_, err = chain.Run(context.Background(), testEnv(t, config.ModeDevelopment),
		&Artifact{Source: source, Contents: []byte(`@import "./missing.css";`)})
	require.ErrorIs(t, err, ErrStylesheet)
}

func TestStyleRejectsScripts(t *testing.T) {
	reg := NewRegistry(nil)
	chain, err := reg.Chain([]rules.Transform{{Name: "style"}})
	require.NoError(t, err)

	_, err = chain.Run(context.Background(), testEnv(t, config.ModeDevelopment),
		&Artifact{Source: "a.js", Contents: []byte("x"), Kind: KindJS})
	require.Error(t, err)
}

func TestElmDebugFollowsMode(t *testing.T) {
	compiler := &fakeCompiler{output: "scope['Elm'] = {Main: {}};"}
	reg := NewRegistry(compiler)
	in := &Artifact{Source: "/src/Main.elm", Contents: []byte("module Main exposing (..)")}

	dev := run(t, reg, testEnv(t, config.ModeDevelopment), in, rules.Transform{Name: "elm"})
	require.Equal(t, KindJS, dev.Kind)
	require.Contains(t, string(dev.Contents), "scope['Elm'] = {Main: {}};")
	require.Contains(t, string(dev.Contents), "export default scope.Elm;")

	run(t, reg, testEnv(t, config.ModeProduction), in, rules.Transform{Name: "elm"})
	run(t, reg, testEnv(t, config.ModeProduction), in, rules.Transform{Name: "elm", Options: map[string]any{"debug": true}})
	run(t, reg, testEnv(t, config.ModeDevelopment), in, rules.Transform{Name: "elm", Options: map[string]any{"debug": "false"}})

	require.Equal(t, []bool{true, false, true, false}, compiler.calls)
}

func TestElmCompileError(t *testing.T) {
	compiler := &fakeCompiler{err: errors.New("boom")}
	reg := NewRegistry(compiler)
	chain, err := reg.Chain([]rules.Transform{{Name: "elm"}})
	require.NoError(t, err)

	_, err = chain.Run(context.Background(), testEnv(t, config.ModeDevelopment), &Artifact{Source: "/src/Main.elm"})
	require.ErrorContains(t, err, "boom")

	_, err = lookup(t, NewRegistry(nil), "elm").Apply(context.Background(), testEnv(t, config.ModeDevelopment), &Artifact{Source: "/src/Main.elm"}, nil)
	require.ErrorIs(t, err, ErrCompileFailed)
}

func lookup(t *testing.T, r *Registry, name string) Transform {
	t.Helper()
	impl, ok := r.Lookup(name)
	require.True(t, ok)
	return impl
}

func TestChainCancelled(t *testing.T) {
	reg := NewRegistry(nil)
	chain, err := reg.Chain([]rules.Transform{{Name: "raw"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = chain.Run(ctx, testEnv(t, config.ModeDevelopment), &Artifact{Source: "x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestOptions(t *testing.T) {
	opts := Options{"s": "v", "n": 3, "f": float64(4), "b": true, "bs": "true", "ns": "12", "bad": []string{}}

	s, ok := opts.Text("s")
	require.True(t, ok)
	require.Equal(t, "v", s)

	n, ok := opts.Int64("n")
	require.True(t, ok)
	require.Equal(t, int64(3), n)

	f, ok := opts.Int64("f")
	require.True(t, ok)
	require.Equal(t, int64(4), f)

	ns, ok := opts.Int64("ns")
	require.True(t, ok)
	require.Equal(t, int64(12), ns)

	b, ok := opts.Bool("b")
	require.True(t, ok)
	require.True(t, b)

	bs, ok := opts.Bool("bs")
	require.True(t, ok)
	require.True(t, bs)

	_, ok = opts.Bool("bad")
	require.False(t, ok)

	_, ok = opts.Int64("missing")
	require.False(t, ok)
}
