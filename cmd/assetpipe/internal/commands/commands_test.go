package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpipe/internal/assets"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/rules"
	"github.com/wolfeidau/assetpipe/internal/transform"
)

const projectConfig = `mode: production
entry:
  app: ./src/index.js
output:
  dir: dist
  filename: "[name].[chunkhash:8].js"
  assetFilename: "[name].[contenthash:8].[ext]"
rules:
  - name: styles
    category: style
    test: '\.css$'
    use: [css-loader, style-loader]
  - name: woff-inline
    category: font
    test: '\.woff(2)?(\?v=[0-9]\.[0-9]\.[0-9])?$'
    maxSize: 10000
    use:
      - name: url-loader
        options:
          mimetype: application/font-woff
  - name: woff-file
    category: font
    test: '\.woff(2)?(\?v=[0-9]\.[0-9]\.[0-9])?$'
    use: [file-loader]
html:
  title: Three Body
devServer:
  stats:
    verbosity: minimal
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	path := filepath.Join(dir, "assetpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))
	return path
}

func TestResolve(t *testing.T) {
	path := writeConfig(t, projectConfig)

	tests := []struct {
		name     string
		path     string
		size     int64
		contains []string
	}{
		{
			name:     "font at the inline limit",
			path:     "fonts/icons.woff",
			size:     10000,
			contains: []string{"fonts/icons.woff (10 kB)", "woff-inline", "url-loader(mimetype=application/font-woff)"},
		},
		{
			name:     "font over the inline limit",
			path:     "fonts/icons.woff2?v=4.7.0",
			size:     10001,
			contains: []string{"woff-file", "file-loader"},
		},
		{
			name:     "stylesheet",
			path:     "src/main.css",
			size:     10,
			contains: []string{"style", "css-loader -> style-loader"},
		},
		{
			name:     "no rule",
			path:     "src/model.obj",
			size:     10,
			contains: []string{"no rule matched, passed through unchanged"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cmd := &ResolveCmd{Paths: []string{tt.path}, Size: tt.size}
			require.NoError(t, cmd.Run(context.Background(), &Globals{Config: path, Stdout: &buf}))

			for _, want := range tt.contains {
				require.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestResolveUnknownSize(t *testing.T) {
	path := writeConfig(t, projectConfig)

	var buf bytes.Buffer
	cmd := &ResolveCmd{Paths: []string{"missing/icons.woff"}, Size: -1}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Config: path, Stdout: &buf}))

	require.Contains(t, buf.String(), "size unknown")
	require.Contains(t, buf.String(), "woff-file")
	require.NotContains(t, buf.String(), "woff-inline")
}

func TestResolveAll(t *testing.T) {
	path := writeConfig(t, projectConfig)

	var buf bytes.Buffer
	cmd := &ResolveCmd{Paths: []string{"fonts/icons.woff"}, Size: 10001, All: true}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Config: path, Stdout: &buf}))

	out := buf.String()
	require.Regexp(t, `styles\s+no-match`, out)
	require.Regexp(t, `woff-inline\s+too-large`, out)
	require.Regexp(t, `woff-file\s+applied`, out)
}

func TestName(t *testing.T) {
	path := writeConfig(t, projectConfig)
	file := filepath.Join(filepath.Dir(path), "logo.png")
	require.NoError(t, os.WriteFile(file, []byte("png-bytes"), 0600))

	run := func(cmd *NameCmd) string {
		var buf bytes.Buffer
		require.NoError(t, cmd.Run(context.Background(), &Globals{Config: path, Stdout: &buf}))
		return buf.String()
	}

	first := run(&NameCmd{File: file})
	require.Regexp(t, regexp.MustCompile(`^logo\.[0-9a-f]{8}\.png\n$`), first)
	require.Equal(t, first, run(&NameCmd{File: file}))

	require.Regexp(t, `^icon-[0-9a-f]{4}\.png\n$`, run(&NameCmd{File: file, Name: "icon", Template: "[name]-[hash:4].[ext]"}))

	var buf bytes.Buffer
	err := (&NameCmd{File: file, Template: "[name].[bogus].[ext]"}).Run(context.Background(), &Globals{Config: path, Stdout: &buf})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeConfig(t, projectConfig)

		var buf bytes.Buffer
		require.NoError(t, (&ValidateCmd{}).Run(context.Background(), &Globals{Config: path, Stdout: &buf}))
		require.Equal(t, path+": ok (1 entries, 3 rules)\n", buf.String())
	})

	t.Run("bad pattern and unknown transform", func(t *testing.T) {
		path := writeConfig(t, `entry:
  app: ./src/index.js
rules:
  - name: broken
    test: '('
    use: [sass-loader]
`)

		err := (&ValidateCmd{}).Run(context.Background(), &Globals{Config: path, Stdout: &bytes.Buffer{}})
		require.ErrorIs(t, err, rules.ErrInvalidPattern)
		require.ErrorIs(t, err, transform.ErrUnknownTransform)
	})

	t.Run("build hash in asset template", func(t *testing.T) {
		path := writeConfig(t, `entry:
  app: ./src/index.js
output:
  assetFilename: "[name].[hash].[ext]"
rules:
  - name: fonts
    test: '\.woff$'
    use: [file]
`)

		err := (&ValidateCmd{}).Run(context.Background(), &Globals{Config: path, Stdout: &bytes.Buffer{}})
		require.ErrorIs(t, err, config.ErrAssetBuildHash)
	})

	t.Run("no config", func(t *testing.T) {
		t.Chdir(t.TempDir())

		err := (&ValidateCmd{}).Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
		require.ErrorIs(t, err, ErrNoConfig)
	})
}

func TestBuild(t *testing.T) {
	path := writeConfig(t, projectConfig)
	dir := filepath.Dir(path)

	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "index.js"), []byte("import './main.css';\nconsole.log('three body');\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.css"), []byte("body { margin: 0; }\n"), 0600))

	var buf bytes.Buffer
	require.NoError(t, (&BuildCmd{Elm: "elm"}).Run(context.Background(), &Globals{Config: path, Stdout: &buf}))
	require.Contains(t, buf.String(), "built ")
	require.Contains(t, buf.String(), "production")

	data, err := os.ReadFile(filepath.Join(dir, "dist", assets.ManifestFilename))
	require.NoError(t, err)

	var manifest assets.Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Equal(t, config.ModeProduction, manifest.Mode)
	require.Len(t, manifest.Entries["app"].Scripts, 1)
	require.Regexp(t, `^/app\.[0-9a-f]{8}\.js$`, manifest.Entries["app"].Scripts[0])
	require.FileExists(t, filepath.Join(dir, "dist", "index.html"))
}
