package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/orchestrator"
)

var localizeCmd = &cobra.Command{
	Use:     "localize <path>...",
	Aliases: []string{"l10n"},
	Short:   "Generate localized outputs",
	Long: `Localize resources below the content root and write the outputs.

An output is regenerated only when it is missing, was produced from a
different source, or anything it depends on changed since: the source, an
included file, a merged dictionary, or a new dictionary for a more specific
locale. A locale suffix in the path selects the locale when --locale is not
given.

Examples:
  glossa localize site/index.xml                 # Default locale
  glossa localize site/index.es-LA.xml           # Locale from the path
  glossa localize site/index.xml -L es,fr        # Several locales
  glossa localize site/index.xml --all           # Every group locale
  glossa localize site/index.xml -L es --diagnose -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLocalize,
}

var localizeFlags *StandardFlags

func init() {
	rootCmd.AddCommand(localizeCmd)

	localizeFlags = AddStandardFlags(localizeCmd, "locale", "generate", "output")
}

func runLocalize(cmd *cobra.Command, args []string) error {
	if err := localizeFlags.ValidateFlags(); err != nil {
		return err
	}

	env, err := newEnvironment()
	if err != nil {
		return err
	}
	return localize(commandContext(cmd), cmd.OutOrStdout(), env.orchestrator, args, localizeFlags)
}

// localize generates every path for the locales flags select. Failures are
// collected per path so the results that succeeded are still printed.
func localize(ctx context.Context, w io.Writer, o *orchestrator.Orchestrator, paths []string, flags *StandardFlags) error {
	collector := cerrors.NewCollector()
	var results []*orchestrator.Result

	for _, p := range paths {
		req := orchestrator.Request{Path: p, Mode: flags.Mode(), Force: flags.Force}

		if flags.All || len(flags.Locales) > 1 {
			batch, err := o.LocalizeAll(ctx, req, flags.Locales)
			results = append(results, batch...)
			if err != nil {
				collector.Add(p, err)
			}
			continue
		}

		if len(flags.Locales) == 1 {
			req.Locale = flags.Locales[0]
		}
		res, err := o.Localize(ctx, req)
		if err != nil {
			collector.Add(p, err)
			continue
		}
		results = append(results, res)
	}

	if err := writeResults(w, flags, results); err != nil {
		return err
	}
	return collector.Err()
}
