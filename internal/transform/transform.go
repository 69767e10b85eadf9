// Package transform implements the transforms (loaders) a rule applies to
// an asset. A chain runs its transforms in declaration order, each one
// receiving the artifact produced by the previous.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/naming"
	"github.com/wolfeidau/assetpipe/internal/rules"
)

var (
	// ErrUnknownTransform indicates a rule names a transform that is not registered
	ErrUnknownTransform = errors.New("unknown transform")
	// ErrCompileFailed indicates an external compiler reported a failure
	ErrCompileFailed = errors.New("compile failed")
)

// Kind describes what an artifact's contents are.
type Kind int

const (
	// KindRaw is untouched source bytes
	KindRaw Kind = iota
	// KindCSS is a stylesheet
	KindCSS
	// KindJS is a JavaScript module
	KindJS
	// KindReference means the artifact was emitted or inlined and only its
	// Reference should be used by importers
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindCSS:
		return "css"
	case KindJS:
		return "js"
	case KindReference:
		return "reference"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Emitted is a file written to the output directory alongside the bundles.
type Emitted struct {
	// Path is relative to the output directory
	Path     string
	Contents []byte
	// Source is the asset the file was produced from
	Source string
}

// Artifact is an asset moving through a transform chain.
type Artifact struct {
	// Source is the asset's file path with any query string removed
	Source   string
	Contents []byte
	Kind     Kind
	// Reference is the URL importers use once the artifact is emitted or inlined
	Reference string
	Emitted   []Emitted
	// Inlined is set when Reference is a data URI
	Inlined bool
}

// Env carries the build settings transforms need.
type Env struct {
	Mode          config.Mode
	Namer         *naming.Namer
	AssetFilename string
	PublicPath    string
	// ResolveURL resolves a url() request found in a stylesheet, relative
	// to resolveDir, to the reference written in the output. Nil leaves
	// references untouched.
	ResolveURL func(ctx context.Context, resolveDir, request string) (string, error)
}

// Options are a transform's free-form options from the rule declaration.
type Options map[string]any

// Transform converts an artifact into the next form in a chain.
type Transform interface {
	Apply(ctx context.Context, env *Env, a *Artifact, opts Options) (*Artifact, error)
}

// Func adapts a function to the Transform interface.
type Func func(ctx context.Context, env *Env, a *Artifact, opts Options) (*Artifact, error)

func (f Func) Apply(ctx context.Context, env *Env, a *Artifact, opts Options) (*Artifact, error) {
	return f(ctx, env, a, opts)
}

// Registry maps transform identifiers to implementations.
type Registry struct {
	transforms map[string]Transform
}

// NewRegistry returns a registry holding the built-in transforms. The elm
// transform compiles with compiler.
func NewRegistry(compiler Compiler) *Registry {
	r := &Registry{transforms: make(map[string]Transform)}
	r.Register("css", Func(applyCSS))
	r.Register("style", Func(applyStyle))
	r.Register("file", Func(applyFile))
	r.Register("url", Func(applyURL))
	r.Register("raw", Func(applyRaw))
	r.Register("elm", &Elm{Compiler: compiler})
	return r
}

// Register adds or replaces a transform.
func (r *Registry) Register(name string, t Transform) {
	r.transforms[canonical(name)] = t
}

// Lookup returns the transform registered under name. Loader style names
// such as "css-loader" resolve to "css".
func (r *Registry) Lookup(name string) (Transform, bool) {
	t, ok := r.transforms[canonical(name)]
	return t, ok
}

func canonical(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), "-loader")
}

type step struct {
	name      string
	transform Transform
	options   Options
}

// Chain is a resolved, ordered list of transforms.
type Chain struct {
	steps []step
}

// Chain resolves the transforms of a rule match.
func (r *Registry) Chain(transforms []rules.Transform) (*Chain, error) {
	c := &Chain{steps: make([]step, 0, len(transforms))}
	for _, t := range transforms {
		impl, ok := r.Lookup(t.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, t.Name)
		}
		c.steps = append(c.steps, step{name: canonical(t.Name), transform: impl, options: t.Options})
	}
	return c, nil
}

// Validate checks every transform the rules name is registered.
func (r *Registry) Validate(cfgs []config.RuleConfig) error {
	var errs []error
	for _, rule := range cfgs {
		for _, use := range rule.Use {
			if _, ok := r.Lookup(use.Name); !ok {
				errs = append(errs, fmt.Errorf("rule %q: %w: %q", rule.Name, ErrUnknownTransform, use.Name))
			}
		}
	}
	return errors.Join(errs...)
}

// Names returns the transform names in chain order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.steps))
	for _, s := range c.steps {
		names = append(names, s.name)
	}
	return names
}

// Run applies each transform in order.
func (c *Chain) Run(ctx context.Context, env *Env, a *Artifact) (*Artifact, error) {
	var err error
	for _, s := range c.steps {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		a, err = s.transform.Apply(ctx, env, a, s.options)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return a, nil
}

func applyRaw(_ context.Context, _ *Env, a *Artifact, _ Options) (*Artifact, error) {
	return a, nil
}

// Text returns a string option.
func (o Options) Text(key string) (string, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	default:
		return fmt.Sprint(t), true
	}
}

// Bool returns a boolean option, accepting booleans and their string forms.
func (o Options) Bool(key string) (bool, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// Int64 returns an integer option; decoded YAML ints and JSON numbers both work.
func (o Options) Int64(key string) (int64, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case uint64:
		if t > uint64(1<<63-1) {
			return 0, false
		}
		return int64(t), true // #nosec G115 - bounded by explicit check
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
