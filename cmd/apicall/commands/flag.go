package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/apicall/internal/printer"
	"github.com/ambiyansyah-risyal/apicall/migration"
)

func newFlagCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flag",
		Short: "Inspect or override the API version flag",
		Long: `The versioned API is used when NEXT_PUBLIC_USE_API_V1 is "true", or when
it is unset and the override store holds feature:api-v1 = "true".

The override store is the YAML file named by API_FLAG_OVERRIDE_FILE or the
Redis instance named by API_FLAG_OVERRIDE_REDIS_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show each flag source and the effective value",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runFlagGet(cmd, opts)
			},
		},
		&cobra.Command{
			Use:       "set true|false",
			Short:     "Write the override",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"true", "false"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return runFlagSet(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "unset",
			Short: "Remove the override",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runFlagSet(cmd, opts, "")
			},
		},
	)
	return cmd
}

func runFlagGet(cmd *cobra.Command, opts *globalOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	cfg, err := opts.loadConfig()
	if err != nil {
		return printer.ErrorTo(cmd.ErrOrStderr(), "Invalid configuration", err.Error(), nil)
	}
	flags, store, err := cfg.FlagSource(nil)
	if err != nil {
		return printer.ErrorTo(cmd.ErrOrStderr(), "Cannot open override store", err.Error(), nil)
	}
	defer closeStore(store)

	envValue, envSet := os.LookupEnv(migration.EnvFlagKey)
	switch {
	case !envSet:
		printer.Info(out, "%s: %s\n", migration.EnvFlagKey, printer.Dim("unset"))
	default:
		printer.Info(out, "%s: %q%s\n", migration.EnvFlagKey, envValue, explicitness(envValue))
	}

	override, found, err := store.Get(ctx, migration.OverrideFlagKey)
	switch {
	case err != nil:
		printer.Warning(out, "%s (%s): %v\n", migration.OverrideFlagKey, describeStore(store), err)
	case !found:
		printer.Info(out, "%s (%s): %s\n", migration.OverrideFlagKey, describeStore(store), printer.Dim("unset"))
	default:
		printer.Info(out, "%s (%s): %q%s\n", migration.OverrideFlagKey, describeStore(store), override, explicitness(override))
	}

	enabled, _ := flags.Lookup(ctx)
	if enabled {
		printer.Success(out, "effective: /api/v1 enabled\n")
	} else {
		printer.Info(out, "effective: legacy /api paths\n")
	}
	return nil
}

func runFlagSet(cmd *cobra.Command, opts *globalOptions, value string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if value != "" {
		if _, ok := migration.ParseFlag(value); !ok {
			return printer.ErrorTo(errOut, fmt.Sprintf("Invalid flag value %q", value),
				"Only the exact strings \"true\" and \"false\" are recognised.",
				[]string{"apicall flag set true", "apicall flag set false"})
		}
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return printer.ErrorTo(errOut, "Invalid configuration", err.Error(), nil)
	}
	store, err := cfg.OverrideStore()
	if err != nil {
		return printer.ErrorTo(errOut, "Cannot open override store", err.Error(), nil)
	}
	defer closeStore(store)

	if _, ok := store.(*migration.MemoryStore); ok {
		return printer.ErrorTo(errOut, "No persistent override store configured",
			"An override written to the in-memory store is lost when this command exits.",
			[]string{"Set API_FLAG_OVERRIDE_FILE to a YAML file path", "Set API_FLAG_OVERRIDE_REDIS_URL to a Redis URL"})
	}

	if value == "" {
		err = store.Delete(ctx, migration.OverrideFlagKey)
	} else {
		err = store.Set(ctx, migration.OverrideFlagKey, value)
	}
	if err != nil {
		return printer.ErrorTo(errOut, "Failed to update override", err.Error(), nil)
	}

	if value == "" {
		printer.Success(out, "removed %s from %s\n", migration.OverrideFlagKey, describeStore(store))
	} else {
		printer.Success(out, "%s = %s in %s\n", migration.OverrideFlagKey, value, describeStore(store))
	}
	if raw, set := os.LookupEnv(migration.EnvFlagKey); set {
		if _, explicit := migration.ParseFlag(raw); explicit {
			printer.Warning(out, "%s=%q is set and takes precedence over the override\n", migration.EnvFlagKey, raw)
		}
	}
	return nil
}

func explicitness(raw string) string {
	if _, ok := migration.ParseFlag(raw); ok {
		return ""
	}
	return printer.Dim(" (not true/false, ignored)")
}

func describeStore(store migration.OverrideStore) string {
	switch s := store.(type) {
	case *migration.FileStore:
		return "file " + s.Path()
	case *migration.RedisStore:
		return "redis"
	case *migration.MemoryStore:
		return "memory"
	default:
		return fmt.Sprintf("%T", store)
	}
}

func closeStore(store migration.OverrideStore) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}
