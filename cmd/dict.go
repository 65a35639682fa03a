package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/glossa/internal/config"
	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/orchestrator"
)

var dictCmd = &cobra.Command{
	Use:     "dict <group>",
	Aliases: []string{"d"},
	Short:   "Inspect the merged dictionaries of a content group",
	Long: `Merge the dictionaries of a content group along each locale's fallback
chain and summarize them: how many phrases each locale resolves, how many
of those come from a fallback locale, and which files contributed.

Examples:
  glossa dict site                           # Every group locale
  glossa dict site -L es --untranslated      # Phrase ids served by a fallback
  glossa dict site -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runDict,
}

var (
	dictFlags        *StandardFlags
	dictUntranslated bool
)

func init() {
	rootCmd.AddCommand(dictCmd)

	dictFlags = AddStandardFlags(dictCmd, "locale", "output")
	dictCmd.Flags().BoolVarP(&dictUntranslated, "untranslated", "u", false, "List the phrase ids each locale takes from a fallback")
}

func runDict(cmd *cobra.Command, args []string) error {
	if err := dictFlags.ValidateFlags(); err != nil {
		return err
	}

	env, err := newEnvironment()
	if err != nil {
		return err
	}
	return dict(commandContext(cmd), cmd.OutOrStdout(), env.orchestrator, args[0], dictFlags, dictUntranslated)
}

// dictView summarizes one locale of a group.
type dictView struct {
	Locale       string   `json:"locale" yaml:"locale"`
	Chain        []string `json:"chain" yaml:"chain"`
	Phrases      int      `json:"phrases" yaml:"phrases"`
	Fallback     int      `json:"fallback" yaml:"fallback"`
	Sources      []string `json:"sources" yaml:"sources"`
	Untranslated []string `json:"untranslated,omitempty" yaml:"untranslated,omitempty"`
	Error        string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func dict(ctx context.Context, w io.Writer, o *orchestrator.Orchestrator, group string, flags *StandardFlags, untranslated bool) error {
	g, ok := o.Config().Group(group)
	if !ok {
		return cerrors.NewConfigError(cerrors.ErrCodeUnknownGroup, fmt.Sprintf("unknown content group %q", group))
	}
	if g.Dictionary == "" {
		return cerrors.NewConfigError(cerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("content group %q has no dictionaries (set a dictionary path containing %s)", group, config.LocalePlaceholder))
	}

	coll, err := o.Dictionaries().Refresh(ctx, group)
	if err != nil {
		return err
	}

	locales := flags.Locales
	if len(locales) == 0 {
		locales = coll.Locales()
	}

	collector := cerrors.NewCollector()
	views := make([]dictView, 0, len(locales))
	for _, l := range locales {
		f, err := o.Dictionaries().Dictionary(ctx, group, l)
		if err != nil {
			collector.Add(l, err)
			views = append(views, dictView{Locale: l, Error: err.Error()})
			continue
		}
		fallback := f.Untranslated()
		v := dictView{
			Locale:   l,
			Chain:    f.Chain,
			Phrases:  f.Len(),
			Fallback: len(fallback),
			Sources:  f.Sources,
		}
		if untranslated {
			v.Untranslated = fallback
		}
		if f.Empty() {
			v.Error = cerrors.NewMissingDictionaryError(group, l).Error()
		}
		views = append(views, v)
	}

	if !flags.Quiet {
		if err := writeDictViews(w, flags, views); err != nil {
			return err
		}
	}
	return collector.Err()
}

func writeDictViews(w io.Writer, flags *StandardFlags, views []dictView) error {
	if ok, err := writeStructured(w, flags.OutputFormat, views); ok {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCALE\tCHAIN\tPHRASES\tFALLBACK\tSOURCES")
	for _, v := range views {
		if v.Error != "" && v.Phrases == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\n", v.Locale, v.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			v.Locale, strings.Join(v.Chain, ">"), v.Phrases, v.Fallback, strings.Join(v.Sources, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, v := range views {
		if len(v.Untranslated) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s untranslated:\n", v.Locale)
		for _, id := range v.Untranslated {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	return nil
}
