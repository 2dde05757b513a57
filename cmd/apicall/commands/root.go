package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/apicall/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalOptions holds persistent flags shared by every subcommand.
type globalOptions struct {
	envFiles []string
	verbose  bool
}

func (o *globalOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.envFiles...)
	if err != nil {
		return config.Config{}, err
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "apicall",
		Short: "apicall - inspect and exercise the versioned CRM API client",
		Long: `apicall is a developer tool for the CRM API client.

It shows how legacy /api/* paths map onto the versioned /api/v1/* tree,
reads and writes the local override of the API version flag, and issues
calls through the same interceptor chain, retry and deduplication logic the
application uses.`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", config.DefaultFiles, "dotenv files to load; earlier files win")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		newMigrateCmd(),
		newRulesCmd(),
		newFlagCmd(opts),
		newCallCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
