package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/glossa/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for glossa including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version used for compilation
- Target platform (OS/architecture)

Examples:
  glossa version                # Show version
  glossa version --detailed     # Show detailed version info
  glossa version --format json  # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	detailed, _ := cmd.Flags().GetBool("detailed")
	return printVersion(cmd.OutOrStdout(), versionFormat, versionShort, detailed)
}

func printVersion(w io.Writer, format string, short, detailed bool) error {
	switch format {
	case "json":
		return writeJSON(w, version.GetBuildInfo())
	case "text":
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}

	if short {
		_, err := fmt.Fprintln(w, version.GetShortVersion())
		return err
	}
	if detailed {
		_, err := fmt.Fprintln(w, version.GetDetailedVersion())
		return err
	}

	info := version.GetBuildInfo()
	fmt.Fprintf(w, "glossa %s", info.Version)
	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		fmt.Fprintf(w, " (%s)", info.GitCommit[:7])
	}
	if info.Dirty {
		fmt.Fprint(w, " (dirty)")
	}
	fmt.Fprintln(w)

	if !info.BuildTime.IsZero() {
		fmt.Fprintf(w, "Built: %s\n", info.BuildTime.Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
	_, err := fmt.Fprintf(w, "Platform: %s\n", info.Platform)
	return err
}
