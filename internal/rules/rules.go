// Package rules maps asset paths to the ordered transforms that process
// them.
//
// Rules are evaluated in declaration order and grouped by category. Within a
// category the first applicable rule wins, which is how a size-limited
// inlining rule and a fallback file rule for the same extension stay
// mutually exclusive. Rules in different categories apply independently.
// A path no rule applies to yields no matches; that is never an error.
package rules

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/wolfeidau/assetpipe/internal/config"
)

// ErrInvalidPattern indicates a rule's test, include or exclude pattern
// does not compile.
var ErrInvalidPattern = errors.New("invalid rule pattern")

// Asset is the input to matching. Size is in bytes; a negative size means
// unknown, which fails any size predicate.
type Asset struct {
	Path string
	Size int64
}

// Transform identifies one transform and its options.
type Transform struct {
	Name    string
	Options map[string]any
}

// Match is a rule that applies to an asset.
type Match struct {
	Rule       string
	Category   string
	Transforms []Transform
}

// Decision records why a rule did or did not apply.
type Decision int

const (
	DecisionNoMatch Decision = iota
	DecisionApplied
	DecisionExcluded
	DecisionNotIncluded
	DecisionTooLarge
	DecisionShadowed
)

func (d Decision) String() string {
	switch d {
	case DecisionNoMatch:
		return "no-match"
	case DecisionApplied:
		return "applied"
	case DecisionExcluded:
		return "excluded"
	case DecisionNotIncluded:
		return "not-included"
	case DecisionTooLarge:
		return "too-large"
	case DecisionShadowed:
		return "shadowed"
	default:
		return fmt.Sprintf("unknown(%d)", int(d))
	}
}

// Explanation is the decision for a single rule.
type Explanation struct {
	Rule     string
	Category string
	Decision Decision
}

type rule struct {
	name       string
	category   string
	group      string
	test       *regexp.Regexp
	include    []*regexp.Regexp
	exclude    []*regexp.Regexp
	maxSize    int64
	transforms []Transform
}

// Matcher is an immutable compiled rule list, safe for concurrent use.
type Matcher struct {
	rules []rule
}

// Compile builds a Matcher from rule declarations.
func Compile(cfgs []config.RuleConfig) (*Matcher, error) {
	m := &Matcher{rules: make([]rule, 0, len(cfgs))}

	for i, cfg := range cfgs {
		name := cfg.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i)
		}

		test, err := regexp.Compile(cfg.Test)
		if err != nil {
			return nil, fmt.Errorf("rule %q: test %q: %w: %w", name, cfg.Test, ErrInvalidPattern, err)
		}

		include, err := compileAll(cfg.Include)
		if err != nil {
			return nil, fmt.Errorf("rule %q: include: %w", name, err)
		}

		exclude, err := compileAll(cfg.Exclude)
		if err != nil {
			return nil, fmt.Errorf("rule %q: exclude: %w", name, err)
		}

		group := cfg.Category
		if group == "" {
			// uncategorised rules never shadow each other
			group = "\x00" + name
		}

		transforms := make([]Transform, 0, len(cfg.Use))
		for _, use := range cfg.Use {
			transforms = append(transforms, Transform{Name: use.Name, Options: use.Options})
		}

		m.rules = append(m.rules, rule{
			name:       name,
			category:   cfg.Category,
			group:      group,
			test:       test,
			include:    include,
			exclude:    exclude,
			maxSize:    cfg.MaxSize,
			transforms: transforms,
		})
	}

	return m, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w: %w", p, ErrInvalidPattern, err)
		}
		res = append(res, re)
	}
	return res, nil
}

// Match returns the rules applying to asset in declaration order, or an
// empty slice when none does.
func (m *Matcher) Match(asset Asset) []Match {
	matches := []Match{}
	won := make(map[string]bool)

	for _, r := range m.rules {
		if won[r.group] {
			continue
		}
		if r.decide(asset) != DecisionApplied {
			continue
		}
		won[r.group] = true
		matches = append(matches, Match{
			Rule:       r.name,
			Category:   r.category,
			Transforms: r.transforms,
		})
	}

	return matches
}

// Explain returns the decision taken for every rule, in declaration order.
func (m *Matcher) Explain(asset Asset) []Explanation {
	out := make([]Explanation, 0, len(m.rules))
	won := make(map[string]bool)

	for _, r := range m.rules {
		d := r.decide(asset)
		if d == DecisionApplied {
			if won[r.group] {
				d = DecisionShadowed
			} else {
				won[r.group] = true
			}
		}
		out = append(out, Explanation{Rule: r.name, Category: r.category, Decision: d})
	}

	return out
}

// Len returns the number of compiled rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}

func (r *rule) decide(asset Asset) Decision {
	if !r.test.MatchString(asset.Path) {
		return DecisionNoMatch
	}

	if len(r.include) > 0 && !anyMatch(r.include, asset.Path) {
		return DecisionNotIncluded
	}

	if anyMatch(r.exclude, asset.Path) {
		return DecisionExcluded
	}

	if r.maxSize > 0 && (asset.Size < 0 || asset.Size > r.maxSize) {
		return DecisionTooLarge
	}

	return DecisionApplied
}

func anyMatch(res []*regexp.Regexp, path string) bool {
	for _, re := range res {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
