package migration

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy names the rule kind that produced a migrated path.
type Strategy string

const (
	StrategyNone     Strategy = "none"
	StrategyExact    Strategy = "exact"
	StrategyTemplate Strategy = "template"
	StrategyRegex    Strategy = "regex"
	StrategyPrefix   Strategy = "prefix"
)

// Rule maps a legacy path to a versioned one. Apply reports false when the
// rule does not match.
type Rule interface {
	Strategy() Strategy
	Apply(path string) (string, bool)
}

// ExactRule matches one literal path.
type ExactRule struct {
	Legacy    string
	Versioned string
}

// Strategy implements Rule.
func (r ExactRule) Strategy() Strategy { return StrategyExact }

// Apply implements Rule.
func (r ExactRule) Apply(path string) (string, bool) {
	if path != r.Legacy {
		return "", false
	}
	return r.Versioned, true
}

var placeholderPattern = regexp.MustCompile(`\$\{[^}]*\}`)

// TemplateRule matches a legacy path containing ${name} placeholders. Each
// placeholder matches exactly one path segment.
type TemplateRule struct {
	Legacy    string
	Versioned string

	pattern *regexp.Regexp
	slots   [][]int
}

// HasPlaceholders reports whether s contains at least one ${...} placeholder.
func HasPlaceholders(s string) bool {
	return placeholderPattern.MatchString(s)
}

// NewTemplateRule compiles legacy into an anchored pattern. Captures are
// substituted into the placeholders of versioned in order of appearance.
func NewTemplateRule(legacy, versioned string) (TemplateRule, error) {
	if !HasPlaceholders(legacy) {
		return TemplateRule{}, fmt.Errorf("template %q has no placeholders", legacy)
	}

	var b strings.Builder
	b.WriteByte('^')
	last := 0
	for _, loc := range placeholderPattern.FindAllStringIndex(legacy, -1) {
		b.WriteString(regexp.QuoteMeta(legacy[last:loc[0]]))
		b.WriteString(`([^/]+)`)
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(legacy[last:]))
	b.WriteByte('$')

	pattern, err := regexp.Compile(b.String())
	if err != nil {
		return TemplateRule{}, fmt.Errorf("compile template %q: %w", legacy, err)
	}

	return TemplateRule{
		Legacy:    legacy,
		Versioned: versioned,
		pattern:   pattern,
		slots:     placeholderPattern.FindAllStringIndex(versioned, -1),
	}, nil
}

// Strategy implements Rule.
func (r TemplateRule) Strategy() Strategy { return StrategyTemplate }

// Apply implements Rule.
func (r TemplateRule) Apply(path string) (string, bool) {
	if r.pattern == nil {
		return "", false
	}
	match := r.pattern.FindStringSubmatch(path)
	if match == nil {
		return "", false
	}
	captures := match[1:]

	var b strings.Builder
	last := 0
	for i, slot := range r.slots {
		b.WriteString(r.Versioned[last:slot[0]])
		if i < len(captures) {
			b.WriteString(captures[i])
		} else {
			// More output placeholders than captures: leave it verbatim.
			b.WriteString(r.Versioned[slot[0]:slot[1]])
		}
		last = slot[1]
	}
	b.WriteString(r.Versioned[last:])
	return b.String(), true
}

// RegexRule rewrites paths matching Pattern using Replacement, which may refer
// to capture groups as $1, $2, ...
type RegexRule struct {
	Pattern     *regexp.Regexp
	Replacement string
	Description string
}

// NewRegexRule compiles pattern into a RegexRule.
func NewRegexRule(pattern, replacement, description string) (RegexRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return RegexRule{}, fmt.Errorf("compile rule %q: %w", description, err)
	}
	return RegexRule{Pattern: re, Replacement: replacement, Description: description}, nil
}

// MustRegexRule is like NewRegexRule but panics on an invalid pattern. It is
// meant for static tables.
func MustRegexRule(pattern, replacement, description string) RegexRule {
	rule, err := NewRegexRule(pattern, replacement, description)
	if err != nil {
		panic(err)
	}
	return rule
}

// Strategy implements Rule.
func (r RegexRule) Strategy() Strategy { return StrategyRegex }

// Apply implements Rule.
func (r RegexRule) Apply(path string) (string, bool) {
	if r.Pattern == nil {
		return "", false
	}
	match := r.Pattern.FindStringSubmatchIndex(path)
	if match == nil {
		return "", false
	}
	var dst []byte
	dst = r.Pattern.ExpandString(dst, r.Replacement, path, match)
	return path[:match[0]] + string(dst) + path[match[1]:], true
}

// PrefixRule swaps the legacy API prefix for the versioned one.
type PrefixRule struct {
	From string
	To   string
}

// Strategy implements Rule.
func (r PrefixRule) Strategy() Strategy { return StrategyPrefix }

// Apply implements Rule.
func (r PrefixRule) Apply(path string) (string, bool) {
	if !strings.HasPrefix(path, r.From) {
		return "", false
	}
	return r.To + strings.TrimPrefix(path, r.From), true
}
