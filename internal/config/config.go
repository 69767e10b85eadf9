// Package config holds the asset pipeline configuration record: entry
// points, output layout, transform rules, the generated HTML page and the
// dev server options. A record is produced once, validated, and then only
// read by the build and serve processes.
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/wolfeidau/assetpipe/internal/naming"
)

const (
	DefaultOutputDir     = "dist"
	DefaultFilename      = "[name].[chunkhash].js"
	DefaultAssetFilename = "[contenthash].[ext]"
	DefaultPublicPath    = "/"
	DefaultHashFunction  = "blake3"
	DefaultHashDigest    = "hex"
	DefaultHashLength    = 20
	DefaultListen        = "127.0.0.1:8080"
	DefaultHTMLFilename  = "index.html"
	// DefaultWatchDir is watched by the dev server when no directories are configured
	DefaultWatchDir = "src"

	// FontInlineLimit is the largest woff/woff2 file, in bytes, that is
	// inlined as a data URI by the default rules.
	FontInlineLimit = 10000
)

// Stats verbosity levels, from quietest to noisiest.
const (
	StatsNone       = "none"
	StatsErrorsOnly = "errors-only"
	StatsMinimal    = "minimal"
	StatsNormal     = "normal"
	StatsVerbose    = "verbose"
)

var statsVerbosities = []string{StatsNone, StatsErrorsOnly, StatsMinimal, StatsNormal, StatsVerbose}

type Config struct {
	// Mode as declared in the file; the mode environment variable wins when set
	Mode Mode `yaml:"mode" json:"mode"`
	// Context is the base directory entry sources are resolved against
	Context   string       `yaml:"context" json:"context"`
	Entries   Entries      `yaml:"entry" json:"entry"`
	Output    Output       `yaml:"output" json:"output"`
	Rules     []RuleConfig `yaml:"rules" json:"rules"`
	HTML      *HTML        `yaml:"html" json:"html"`
	DevServer DevServer    `yaml:"devServer" json:"devServer"`
}

type Output struct {
	// Dir is the single output directory
	Dir string `yaml:"dir" json:"dir"`
	// Filename is the template for entry bundles, e.g. [name].[chunkhash].js
	Filename string `yaml:"filename" json:"filename"`
	// AssetFilename is the template for files emitted by transforms
	AssetFilename string `yaml:"assetFilename" json:"assetFilename"`
	// PublicPath prefixes references to emitted files
	PublicPath   string `yaml:"publicPath" json:"publicPath"`
	HashFunction string `yaml:"hashFunction" json:"hashFunction"`
	HashDigest   string `yaml:"hashDigest" json:"hashDigest"`
	HashLength   int    `yaml:"hashLength" json:"hashLength"`
}

type RuleConfig struct {
	Name string `yaml:"name" json:"name"`
	// Category groups rules handling the same concern. Within a category the
	// first applicable rule wins; rules in different categories all apply.
	Category string            `yaml:"category" json:"category"`
	Test     string            `yaml:"test" json:"test"`
	Include  []string          `yaml:"include" json:"include"`
	Exclude  []string          `yaml:"exclude" json:"exclude"`
	MaxSize  int64             `yaml:"maxSize" json:"maxSize"`
	Use      []TransformConfig `yaml:"use" json:"use"`
}

type TransformConfig struct {
	Name    string         `yaml:"name" json:"name"`
	Options map[string]any `yaml:"options" json:"options"`
}

// HTML describes the generated page that loads the entry bundles.
type HTML struct {
	Filename string            `yaml:"filename" json:"filename"`
	Title    string            `yaml:"title" json:"title"`
	Meta     map[string]string `yaml:"meta" json:"meta"`
	// Hash appends the build hash as a query string to script URLs
	Hash bool `yaml:"hash" json:"hash"`
	// Template is an optional html/template file replacing the built-in page
	Template string `yaml:"template" json:"template"`
}

type DevServer struct {
	Listen      string   `yaml:"listen" json:"listen"`
	Compress    bool     `yaml:"compress" json:"compress"`
	Inline      bool     `yaml:"inline" json:"inline"`
	Stats       Stats    `yaml:"stats" json:"stats"`
	CORSOrigins []string `yaml:"corsOrigins" json:"corsOrigins"`
	// Watch lists directories whose changes trigger a rebuild
	Watch []string `yaml:"watch" json:"watch"`
}

type Stats struct {
	Colors    bool   `yaml:"colors" json:"colors"`
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

const fontVersionSuffix = `(\?v=[0-9]\.[0-9]\.[0-9])?$`

// Default returns the built-in configuration used when no config file is
// present or the file cannot be loaded.
func Default() *Config {
	cfg := &Config{
		Context: ".",
		Entries: Entries{
			{Name: "app", Sources: []string{"./src/index.js"}},
		},
		Rules: []RuleConfig{
			{
				Name:     "styles",
				Category: "style",
				Test:     `\.(css|scss)$`,
				Use:      []TransformConfig{{Name: "css"}, {Name: "style"}},
			},
			{
				Name:     "html",
				Category: "html",
				Test:     `\.html$`,
				Exclude:  []string{`node_modules`},
				Use: []TransformConfig{
					{Name: "file", Options: map[string]any{"name": "[name].[ext]"}},
				},
			},
			{
				Name:     "elm",
				Category: "dsl",
				Test:     `\.elm$`,
				Exclude:  []string{`elm-stuff`, `node_modules`},
				Use:      []TransformConfig{{Name: "elm"}},
			},
			{
				Name:     "woff-inline",
				Category: "font",
				Test:     `\.woff(2)?` + fontVersionSuffix,
				MaxSize:  FontInlineLimit,
				Use: []TransformConfig{
					{Name: "url", Options: map[string]any{"mimetype": "application/font-woff"}},
				},
			},
			{
				Name:     "woff-file",
				Category: "font",
				Test:     `\.woff(2)?` + fontVersionSuffix,
				Use:      []TransformConfig{{Name: "file"}},
			},
			{
				Name:     "fonts",
				Category: "font",
				Test:     `\.(ttf|eot|svg)` + fontVersionSuffix,
				Use:      []TransformConfig{{Name: "file"}},
			},
		},
		HTML: &HTML{
			Title: "Three Body",
			Meta: map[string]string{
				"viewport": "width=device-width, initial-scale=1",
			},
			Hash: true,
		},
		DevServer: DevServer{
			Inline:   true,
			Compress: true,
			Stats:    Stats{Colors: true},
			Watch:    []string{DefaultWatchDir},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset scalar fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Context == "" {
		c.Context = "."
	}
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
	if c.Output.Filename == "" {
		c.Output.Filename = DefaultFilename
	}
	if c.Output.AssetFilename == "" {
		c.Output.AssetFilename = DefaultAssetFilename
	}
	if c.Output.PublicPath == "" {
		c.Output.PublicPath = DefaultPublicPath
	}
	if c.Output.HashFunction == "" {
		c.Output.HashFunction = DefaultHashFunction
	}
	if c.Output.HashDigest == "" {
		c.Output.HashDigest = DefaultHashDigest
	}
	if c.Output.HashLength <= 0 {
		c.Output.HashLength = DefaultHashLength
	}
	if c.HTML != nil && c.HTML.Filename == "" {
		c.HTML.Filename = DefaultHTMLFilename
	}
	if c.DevServer.Listen == "" {
		c.DevServer.Listen = DefaultListen
	}
	if c.DevServer.Stats.Verbosity == "" {
		c.DevServer.Stats.Verbosity = StatsNormal
	}
	if len(c.DevServer.Watch) == 0 {
		c.DevServer.Watch = []string{DefaultWatchDir}
	}
}

// Validate checks the record's invariants and returns every violation found.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Entries) == 0 {
		errs = append(errs, ErrNoEntries)
	}

	seen := make(map[string]bool, len(c.Entries))
	for i, entry := range c.Entries {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, ErrEmptyEntryName))
			continue
		}
		if seen[entry.Name] {
			errs = append(errs, fmt.Errorf("entry %q: %w", entry.Name, ErrDuplicateEntry))
		}
		seen[entry.Name] = true
		if len(entry.Sources) == 0 {
			errs = append(errs, fmt.Errorf("entry %q: %w", entry.Name, ErrNoSources))
		}
	}

	if c.Output.Dir == "" {
		errs = append(errs, ErrEmptyOutputDir)
	}
	if c.Output.Filename == "" {
		errs = append(errs, ErrEmptyFilename)
	}
	if naming.UsesToken(c.Output.AssetFilename, "hash") {
		errs = append(errs, fmt.Errorf("%q: %w", c.Output.AssetFilename, ErrAssetBuildHash))
	}

	ruleNames := make(map[string]bool, len(c.Rules))
	for i, rule := range c.Rules {
		name := rule.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if rule.Name != "" && ruleNames[rule.Name] {
			errs = append(errs, fmt.Errorf("rule %q: %w", name, ErrDuplicateRule))
		}
		ruleNames[rule.Name] = true
		if rule.Test == "" {
			errs = append(errs, fmt.Errorf("rule %q: %w", name, ErrRuleNoTest))
		}
		if len(rule.Use) == 0 {
			errs = append(errs, fmt.Errorf("rule %q: %w", name, ErrRuleNoTransforms))
		}
	}

	if v := c.DevServer.Stats.Verbosity; v != "" && !slices.Contains(statsVerbosities, v) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidVerbosity, v))
	}

	return errors.Join(errs...)
}

// EntryNames returns the entry point names in declaration order.
func (c *Config) EntryNames() []string {
	names := make([]string, 0, len(c.Entries))
	for _, entry := range c.Entries {
		names = append(names, entry.Name)
	}
	return names
}
