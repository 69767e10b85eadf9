package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	require.Equal(t, []string{"app"}, cfg.EntryNames())
	require.Equal(t, []string{"./src/index.js"}, cfg.Entries[0].Sources)
	require.Equal(t, "dist", cfg.Output.Dir)
	require.Equal(t, "[name].[chunkhash].js", cfg.Output.Filename)
	require.Len(t, cfg.Rules, 6)
	require.True(t, cfg.DevServer.Inline)
	require.True(t, cfg.DevServer.Compress)
	require.True(t, cfg.DevServer.Stats.Colors)
	require.Equal(t, StatsNormal, cfg.DevServer.Stats.Verbosity)
	require.NotNil(t, cfg.HTML)
	require.Equal(t, "Three Body", cfg.HTML.Title)
	require.Equal(t, "index.html", cfg.HTML.Filename)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected Mode
		debug    bool
	}{
		{name: "missing", value: "", expected: ModeDevelopment, debug: true},
		{name: "development", value: "development", expected: ModeDevelopment, debug: true},
		{name: "production", value: "production", expected: ModeProduction, debug: false},
		{name: "mixed case", value: " Production ", expected: ModeProduction, debug: false},
		{name: "unknown", value: "staging", expected: ModeDevelopment, debug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode := ParseMode(tt.value)
			require.Equal(t, tt.expected, mode)
			require.Equal(t, tt.debug, mode.Debug())
		})
	}
}

func TestParseYAML(t *testing.T) {
	doc := `
mode: production
entry:
  app: ./src/index.js
  admin:
    - ./src/admin.js
    - ./src/admin.css
output:
  dir: public
  filename: "[name].[contenthash:8].js"
rules:
  - name: styles
    test: '\.css$'
    use: [css, style]
  - name: images
    test: '\.png$'
    maxSize: 2048
    use:
      - name: url
        options:
          mimetype: image/png
devServer:
  compress: true
  stats:
    verbosity: minimal
`
	cfg, err := Parse("assetpipe.yaml", []byte(doc))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, ModeProduction, cfg.Mode)
	require.Equal(t, []string{"app", "admin"}, cfg.EntryNames())
	require.Equal(t, []string{"./src/admin.js", "./src/admin.css"}, cfg.Entries[1].Sources)
	require.Equal(t, "public", cfg.Output.Dir)
	require.Equal(t, "[name].[contenthash:8].js", cfg.Output.Filename)
	require.Equal(t, DefaultAssetFilename, cfg.Output.AssetFilename)

	require.Len(t, cfg.Rules, 2)
	require.Equal(t, "css", cfg.Rules[0].Use[0].Name)
	require.Equal(t, "style", cfg.Rules[0].Use[1].Name)
	require.Equal(t, int64(2048), cfg.Rules[1].MaxSize)
	require.Equal(t, "image/png", cfg.Rules[1].Use[0].Options["mimetype"])

	require.True(t, cfg.DevServer.Compress)
	require.Equal(t, StatsMinimal, cfg.DevServer.Stats.Verbosity)
	require.Equal(t, DefaultListen, cfg.DevServer.Listen)
}

func TestParseYAMLDuplicateEntry(t *testing.T) {
	doc := `
entry:
  app: ./a.js
  app: ./b.js
`
	_, err := Parse("assetpipe.yml", []byte(doc))
	require.Error(t, err)
}

func TestParseJSONC(t *testing.T) {
	doc := `{
  // entry points
  "entry": {"app": ["./src/index.js"], "worker": "./src/worker.js"},
  "rules": [
    {"name": "styles", "test": "\\.css$", "use": ["css", {"name": "style"}]}, /* trailing */
  ],
}`
	cfg, err := Parse("assetpipe.jsonc", []byte(doc))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, []string{"app", "worker"}, cfg.EntryNames())
	require.Equal(t, []string{"./src/worker.js"}, cfg.Entries[1].Sources)
	require.Equal(t, "style", cfg.Rules[0].Use[1].Name)
}

func TestParseJSONDuplicateEntry(t *testing.T) {
	_, err := Parse("assetpipe.json", []byte(`{"entry": {"app": "./a.js", "app": "./b.js"}}`))
	require.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse("assetpipe.toml", []byte(``))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		err    error
	}{
		{name: "no entries", mutate: func(c *Config) { c.Entries = nil }, err: ErrNoEntries},
		{name: "empty entry name", mutate: func(c *Config) { c.Entries[0].Name = "" }, err: ErrEmptyEntryName},
		{name: "duplicate entry", mutate: func(c *Config) {
			c.Entries = append(c.Entries, Entry{Name: "app", Sources: []string{"./b.js"}})
		}, err: ErrDuplicateEntry},
		{name: "no sources", mutate: func(c *Config) { c.Entries[0].Sources = nil }, err: ErrNoSources},
		{name: "empty filename", mutate: func(c *Config) { c.Output.Filename = "" }, err: ErrEmptyFilename},
		{name: "empty dir", mutate: func(c *Config) { c.Output.Dir = "" }, err: ErrEmptyOutputDir},
		{name: "build hash in asset template", mutate: func(c *Config) { c.Output.AssetFilename = "[name].[hash:8].[ext]" }, err: ErrAssetBuildHash},
		{name: "duplicate rule", mutate: func(c *Config) { c.Rules[1].Name = c.Rules[0].Name }, err: ErrDuplicateRule},
		{name: "rule without test", mutate: func(c *Config) { c.Rules[0].Test = "" }, err: ErrRuleNoTest},
		{name: "rule without transforms", mutate: func(c *Config) { c.Rules[0].Use = nil }, err: ErrRuleNoTransforms},
		{name: "bad verbosity", mutate: func(c *Config) { c.DevServer.Stats.Verbosity = "loud" }, err: ErrInvalidVerbosity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), tt.err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()

	t.Run("no path", func(t *testing.T) {
		require.Equal(t, Default(), LoadOrDefault(""))
	})

	t.Run("missing file", func(t *testing.T) {
		require.Equal(t, Default(), LoadOrDefault(filepath.Join(dir, "missing.yaml")))
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("entry: [unclosed"), 0600))
		require.Equal(t, Default(), LoadOrDefault(path))
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "assetpipe.yaml")
		require.NoError(t, os.WriteFile(path, []byte("entry:\n  main: ./main.js\n"), 0600))
		cfg := LoadOrDefault(path)
		require.Equal(t, []string{"main"}, cfg.EntryNames())
		require.Equal(t, dir, cfg.Context)
		require.Equal(t, []string{DefaultWatchDir}, cfg.DevServer.Watch)
	})

	t.Run("explicit watch list", func(t *testing.T) {
		path := filepath.Join(dir, "watch.yaml")
		require.NoError(t, os.WriteFile(path, []byte("entry:\n  main: ./main.js\ndevServer:\n  watch: [app, styles]\n"), 0600))
		cfg := LoadOrDefault(path)
		require.Equal(t, []string{"app", "styles"}, cfg.DevServer.Watch)
	})
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	require.Empty(t, Discover(dir))

	path := filepath.Join(dir, "assetpipe.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0600))
	require.Equal(t, path, Discover(dir))
}
