package assets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"maps"
	"path/filepath"
	"sync"
	"time"

	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/naming"
	"github.com/wolfeidau/assetpipe/internal/rules"
	"github.com/wolfeidau/assetpipe/internal/transform"
)

// BuildMetadata is the subset of the esbuild metafile the pipeline reads.
type BuildMetadata struct {
	Inputs map[string]InputInfo `json:"inputs"`
}

type InputInfo struct {
	Bytes int `json:"bytes"`
}

// Bundle is the output produced for one entry point.
type Bundle struct {
	Entry string `json:"entry"`
	// File is the script path relative to the output directory
	File string `json:"file"`
	// Styles are stylesheets emitted next to the script
	Styles []string `json:"styles,omitempty"`
	Digest string   `json:"digest"`
	Size   int      `json:"size"`
}

// Asset is a file a transform emitted, or an asset inlined into a bundle.
type Asset struct {
	Source  string `json:"source"`
	File    string `json:"file,omitempty"`
	Size    int    `json:"size"`
	Inlined bool   `json:"inlined,omitempty"`
	// Passthrough is set for assets no rule matched
	Passthrough bool `json:"passthrough,omitempty"`
}

// Result summarises a build.
type Result struct {
	Mode config.Mode `json:"mode"`
	Hash string      `json:"hash"`
	// Modules is the number of inputs esbuild bundled
	Modules  int           `json:"modules"`
	Bundles  []Bundle      `json:"bundles"`
	Assets   []Asset       `json:"assets"`
	Page     string        `json:"page,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"-"`
}

// Bundle returns the bundle built for entry.
func (r *Result) Bundle(entry string) (Bundle, bool) {
	for _, b := range r.Bundles {
		if b.Entry == entry {
			return b, true
		}
	}
	return Bundle{}, false
}

// Pipeline manages the asset build process and script loading
type Pipeline struct {
	config   *config.Config
	opts     Options
	matcher  *rules.Matcher
	registry *transform.Registry
	namer    *naming.Namer
	context  string
	outDir   string
	tmpl     *template.Template
	result   *Result
	files    map[string][]byte
	mu       sync.RWMutex
}

// New creates a new asset pipeline for the configuration record.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	return newPipeline(cfg, opts, nil)
}

// NewWithTemplateFuncs creates a pipeline whose page template has extra functions.
func NewWithTemplateFuncs(cfg *config.Config, opts Options, customFuncs template.FuncMap) (*Pipeline, error) {
	return newPipeline(cfg, opts, customFuncs)
}

func newPipeline(cfg *config.Config, opts Options, customFuncs template.FuncMap) (*Pipeline, error) {
	matcher, err := rules.Compile(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	compiler := opts.Compiler
	if compiler == nil {
		compiler = &transform.ElmMake{}
	}

	registry := transform.NewRegistry(compiler)
	if err := registry.Validate(cfg.Rules); err != nil {
		return nil, err
	}

	namer, err := naming.New(cfg.Output.HashFunction, cfg.Output.HashDigest, cfg.Output.HashLength)
	if err != nil {
		return nil, err
	}

	absContext, err := filepath.Abs(cfg.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve context: %w", err)
	}

	outDir := cfg.Output.Dir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(absContext, outDir)
	}

	p := &Pipeline{
		config:   cfg,
		opts:     opts,
		matcher:  matcher,
		registry: registry,
		namer:    namer,
		context:  absContext,
		outDir:   outDir,
	}

	if cfg.HTML != nil {
		p.tmpl, err = loadPageTemplate(cfg.HTML.Template, customFuncs)
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

// OutputDir returns the absolute output directory.
func (p *Pipeline) OutputDir() string {
	return p.outDir
}

// Context returns the absolute base directory sources resolve against.
func (p *Pipeline) Context() string {
	return p.context
}

// LastResult returns the result of the most recent successful build.
func (p *Pipeline) LastResult() (*Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result, p.result != nil
}

func loadPageTemplate(path string, customFuncs template.FuncMap) (*template.Template, error) {
	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}

	// Merge custom functions
	maps.Copy(funcs, customFuncs)

	if path == "" {
		return template.New("page").Funcs(funcs).Parse(defaultPage)
	}

	tmpl, err := template.New(filepath.Base(path)).Funcs(funcs).ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load page template: %w", err)
	}
	return tmpl, nil
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}
