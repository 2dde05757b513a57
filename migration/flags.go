package migration

import (
	"context"
	"os"
)

const (
	// EnvFlagKey is the environment variable that force-enables or disables
	// migration for the whole process.
	EnvFlagKey = "NEXT_PUBLIC_USE_API_V1"
	// OverrideFlagKey is the local override key consulted when EnvFlagKey is unset.
	OverrideFlagKey = "feature:api-v1"
)

// FlagSource resolves the migration flag. ok is false when the source has no
// explicit value, in which case the next source in a chain is consulted.
type FlagSource interface {
	Lookup(ctx context.Context) (enabled bool, ok bool)
}

// FlagSourceFunc adapts a function to FlagSource.
type FlagSourceFunc func(ctx context.Context) (bool, bool)

// Lookup implements FlagSource.
func (f FlagSourceFunc) Lookup(ctx context.Context) (bool, bool) {
	return f(ctx)
}

// ParseFlag interprets a raw flag value. Only "true" and "false" are explicit.
func ParseFlag(raw string) (enabled bool, ok bool) {
	switch raw {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// EnvFlagSource reads the flag from the process environment on every lookup.
type EnvFlagSource struct {
	key    string
	lookup func(string) (string, bool)
}

// NewEnvFlagSource reads NEXT_PUBLIC_USE_API_V1.
func NewEnvFlagSource() *EnvFlagSource {
	return NewEnvFlagSourceWithKey(EnvFlagKey, os.LookupEnv)
}

// NewEnvFlagSourceWithKey reads key through lookup. A nil lookup uses os.LookupEnv.
func NewEnvFlagSourceWithKey(key string, lookup func(string) (string, bool)) *EnvFlagSource {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvFlagSource{key: key, lookup: lookup}
}

// Lookup implements FlagSource.
func (s *EnvFlagSource) Lookup(context.Context) (bool, bool) {
	raw, set := s.lookup(s.key)
	if !set {
		return false, false
	}
	return ParseFlag(raw)
}

// LocalOverrideFlagSource reads the flag from an OverrideStore, the server-side
// stand-in for a developer's browser storage.
type LocalOverrideFlagSource struct {
	store  OverrideStore
	key    string
	logger Logger
}

// NewLocalOverrideFlagSource reads feature:api-v1 from store.
func NewLocalOverrideFlagSource(store OverrideStore, opts ...OverrideOption) *LocalOverrideFlagSource {
	s := &LocalOverrideFlagSource{store: store, key: OverrideFlagKey, logger: nopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OverrideOption configures a LocalOverrideFlagSource.
type OverrideOption func(*LocalOverrideFlagSource)

// WithOverrideKey changes the store key.
func WithOverrideKey(key string) OverrideOption {
	return func(s *LocalOverrideFlagSource) {
		s.key = key
	}
}

// WithOverrideLogger logs store failures.
func WithOverrideLogger(logger Logger) OverrideOption {
	return func(s *LocalOverrideFlagSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Lookup implements FlagSource. Store errors count as unset.
func (s *LocalOverrideFlagSource) Lookup(ctx context.Context) (bool, bool) {
	if s.store == nil {
		return false, false
	}
	raw, found, err := s.store.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("flag override lookup failed", "key", s.key, "error", err)
		return false, false
	}
	if !found {
		return false, false
	}
	return ParseFlag(raw)
}

// Chain returns a FlagSource that asks each source in order and returns the
// first explicit value. Nil sources are skipped.
func Chain(sources ...FlagSource) FlagSource {
	return FlagSourceFunc(func(ctx context.Context) (bool, bool) {
		for _, src := range sources {
			if src == nil {
				continue
			}
			if enabled, ok := src.Lookup(ctx); ok {
				return enabled, true
			}
		}
		return false, false
	})
}

// Static is a FlagSource with a fixed explicit value.
type Static bool

// Lookup implements FlagSource.
func (s Static) Lookup(context.Context) (bool, bool) {
	return bool(s), true
}
