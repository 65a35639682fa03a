package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/glossa/internal/orchestrator"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Print a resource with every include expanded",
	Long: `Assemble a resource below the content root and print it without
localizing. Includes that fail are reported on stderr; in developer mode
they are also left in the document as diagnostic elements.

Examples:
  glossa resolve site/index.xml            # Assembled document
  glossa resolve site/index.xml --deps     # Files it was assembled from`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var resolveDeps bool

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().BoolVar(&resolveDeps, "deps", false, "Print the dependencies instead of the document")
}

func runResolve(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment()
	if err != nil {
		return err
	}
	return resolve(commandContext(cmd), cmd.OutOrStdout(), cmd.ErrOrStderr(), env.orchestrator, args[0], resolveDeps)
}

func resolve(ctx context.Context, w, errw io.Writer, o *orchestrator.Orchestrator, p string, deps bool) error {
	doc, report, err := o.Resolve(ctx, p)
	if err != nil {
		return err
	}

	for _, f := range report.Failures {
		fmt.Fprintf(errw, "include %s failed: %v\n", f.ID, f.Err)
	}
	for _, f := range report.Missing {
		fmt.Fprintf(errw, "include %s matched nothing\n", f.ID)
	}

	if deps {
		for _, d := range doc.Dependencies() {
			fmt.Fprintln(w, d)
		}
		return nil
	}

	if _, err := doc.WriteTo(w); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w)
	return err
}
