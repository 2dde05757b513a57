// Package migration rewrites legacy backend paths (/api/...) to their
// versioned equivalents (/api/v1/...).
//
// A Migrator applies an ordered set of rules:
//
//  1. paths already under /api/v1/ are returned unchanged
//  2. exact routes from the table
//  3. templated routes, where ${name} placeholders match one path segment
//  4. regex rules with $n back-references
//  5. the generic /api/ -> /api/v1/ prefix swap
//  6. anything else (for example /health) passes through
//
// Whether migration is active at all is decided by a FlagSource chain that is
// consulted on every call, so flipping NEXT_PUBLIC_USE_API_V1 or the local
// feature:api-v1 override takes effect on the next request:
//
//	flags := migration.Chain(
//	    migration.NewEnvFlagSource(),
//	    migration.NewLocalOverrideFlagSource(store),
//	)
//	m := migration.MustNew(migration.DefaultTable(), flags)
//	if m.Enabled(ctx) {
//	    path = m.MigratePath(path)
//	}
package migration
