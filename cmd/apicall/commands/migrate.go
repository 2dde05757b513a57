package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/apicall/internal/printer"
	"github.com/ambiyansyah-risyal/apicall/migration"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate PATH...",
		Short: "Show the versioned path for legacy API paths",
		Long: `Show the /api/v1 path each legacy path maps to and the rule kind that
matched (exact, template, regex, prefix, or none). The API version flag is
not consulted.`,
		Example: `  apicall migrate /api/agents/create /api/conversations/42/send-message`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migration.New(migration.DefaultTable(), nil)
			if err != nil {
				return printer.ErrorTo(cmd.ErrOrStderr(), "Invalid route table", err.Error(), nil)
			}

			out := cmd.OutOrStdout()
			for _, path := range args {
				migrated, strategy := m.Migrate(path)
				printer.Info(out, "%s -> %s %s\n", path, printer.Highlight(migrated), printer.Dim("("+string(strategy)+")"))
			}
			return nil
		},
	}
}

func newRulesCmd() *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List migration rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migration.New(migration.DefaultTable(), nil)
			if err != nil {
				return printer.ErrorTo(cmd.ErrOrStderr(), "Invalid route table", err.Error(), nil)
			}

			out := cmd.OutOrStdout()
			for _, rule := range m.Rules() {
				if strategy != "" && string(rule.Strategy()) != strategy {
					continue
				}
				from, to := describeRule(rule)
				printer.Info(out, "%-9s %s -> %s\n", rule.Strategy(), from, printer.Highlight(to))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "only list rules of this kind (exact, template, regex, prefix)")
	return cmd
}

func describeRule(rule migration.Rule) (from, to string) {
	switch r := rule.(type) {
	case migration.ExactRule:
		return r.Legacy, r.Versioned
	case migration.TemplateRule:
		return r.Legacy, r.Versioned
	case migration.RegexRule:
		pattern := ""
		if r.Pattern != nil {
			pattern = r.Pattern.String()
		}
		if r.Description != "" {
			pattern = fmt.Sprintf("%s [%s]", pattern, r.Description)
		}
		return pattern, r.Replacement
	case migration.PrefixRule:
		return r.From + "*", strings.TrimSuffix(r.To, "/") + "/*"
	default:
		return fmt.Sprintf("%v", rule), ""
	}
}
