package migration

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the subset of the client logger the migrator writes to.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger used for migration diagnostics.
func WithLogger(logger Logger) Option {
	return func(m *Migrator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Migrator maps legacy request paths to versioned ones. It is immutable after
// construction and safe for concurrent use.
type Migrator struct {
	routes    []Route
	exact     map[string]string
	templates []TemplateRule
	patterns  []RegexRule
	fallback  PrefixRule
	flags     FlagSource
	logger    Logger
}

// New builds a Migrator from table. flags decides whether migration is
// enabled; a nil flags disables it.
func New(table Table, flags FlagSource, opts ...Option) (*Migrator, error) {
	m := &Migrator{
		routes:   append([]Route(nil), table.Routes...),
		exact:    make(map[string]string, len(table.Routes)),
		patterns: append([]RegexRule(nil), table.Patterns...),
		fallback: PrefixRule{From: LegacyPrefix, To: VersionedPrefix},
		flags:    flags,
		logger:   nopLogger{},
	}

	for _, route := range table.Routes {
		if route.Legacy == "" {
			return nil, fmt.Errorf("route to %q has an empty legacy path", route.Versioned)
		}
		if _, dup := m.exact[route.Legacy]; dup {
			return nil, fmt.Errorf("duplicate route %q", route.Legacy)
		}
		m.exact[route.Legacy] = route.Versioned

		if HasPlaceholders(route.Legacy) {
			tmpl, err := NewTemplateRule(route.Legacy, route.Versioned)
			if err != nil {
				return nil, err
			}
			m.templates = append(m.templates, tmpl)
		}
	}

	for i, p := range m.patterns {
		if p.Pattern == nil {
			return nil, fmt.Errorf("pattern %d (%s) is not compiled", i, p.Description)
		}
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MustNew is like New but panics if the table is invalid.
func MustNew(table Table, flags FlagSource, opts ...Option) *Migrator {
	m, err := New(table, flags, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Enabled resolves the feature flag. It is evaluated on every call.
func (m *Migrator) Enabled(ctx context.Context) bool {
	if m.flags == nil {
		return false
	}
	enabled, ok := m.flags.Lookup(ctx)
	return ok && enabled
}

// MigratePath returns the versioned path for path, or path itself when no rule
// applies. It does not consult the feature flag.
func (m *Migrator) MigratePath(path string) string {
	migrated, _ := m.Migrate(path)
	return migrated
}

// Migrate is MigratePath that also reports which strategy matched.
func (m *Migrator) Migrate(path string) (string, Strategy) {
	if IsVersioned(path) {
		return path, StrategyNone
	}

	if versioned, ok := m.exact[path]; ok {
		m.logMigration(path, versioned, StrategyExact, "")
		return versioned, StrategyExact
	}

	for _, tmpl := range m.templates {
		if versioned, ok := tmpl.Apply(path); ok {
			m.logMigration(path, versioned, StrategyTemplate, tmpl.Legacy)
			return versioned, StrategyTemplate
		}
	}

	for _, p := range m.patterns {
		if versioned, ok := p.Apply(path); ok {
			m.logMigration(path, versioned, StrategyRegex, p.Description)
			return versioned, StrategyRegex
		}
	}

	if versioned, ok := m.fallback.Apply(path); ok {
		m.logMigration(path, versioned, StrategyPrefix, "")
		return versioned, StrategyPrefix
	}

	return path, StrategyNone
}

// Rules returns every rule in evaluation order, the prefix fallback last.
func (m *Migrator) Rules() []Rule {
	rules := make([]Rule, 0, len(m.routes)+len(m.patterns)+1)
	for _, route := range m.routes {
		if !HasPlaceholders(route.Legacy) {
			rules = append(rules, ExactRule{Legacy: route.Legacy, Versioned: route.Versioned})
		}
	}
	for _, tmpl := range m.templates {
		rules = append(rules, tmpl)
	}
	for _, p := range m.patterns {
		rules = append(rules, p)
	}
	return append(rules, m.fallback)
}

// IsVersioned reports whether path already targets the versioned tree.
func IsVersioned(path string) bool {
	return path == strings.TrimSuffix(VersionedPrefix, "/") || strings.HasPrefix(path, VersionedPrefix)
}

func (m *Migrator) logMigration(from, to string, strategy Strategy, rule string) {
	kv := []any{"from", from, "to", to, "strategy", string(strategy)}
	if rule != "" {
		kv = append(kv, "rule", rule)
	}
	m.logger.Debug("path migrated", kv...)
}
