package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/glossa/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or validate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the configuration after loading the file, applying GLOSSA_
environment overrides and defaults, resolving relative paths and
canonicalizing locale names.

Examples:
  glossa config show                  # YAML
  glossa config show --format json`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file: locale names must parse, fallbacks and
group locales must name configured locales, and dictionary paths must
contain {locale}.

Examples:
  glossa config validate              # The file glossa would use
  glossa config validate site.yml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigValidate,
}

var configFormat string

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return showConfig(cmd.OutOrStdout(), cfg, configFormat)
}

func showConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml", "yml":
		return writeYAML(w, cfg)
	case "json":
		return writeJSON(w, cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", format)
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	target := viper.ConfigFileUsed()
	if len(args) == 1 {
		target = args[0]
	}
	if target == "" {
		return fmt.Errorf("no configuration file found; pass one or create .glossa.yml")
	}
	return validateConfig(cmd.OutOrStdout(), target)
}

func validateConfig(w io.Writer, file string) error {
	cfg, err := config.LoadFile(file)
	if err != nil {
		return err
	}

	groups := make([]string, 0, len(cfg.Groups))
	for _, g := range cfg.Groups {
		groups = append(groups, g.Name)
	}
	fmt.Fprintf(w, "%s is valid\n", file)
	fmt.Fprintf(w, "  locales: %s (default %s)\n", strings.Join(cfg.LocaleNames(), ", "), cfg.DefaultLocale)
	fmt.Fprintf(w, "  groups:  %s\n", strings.Join(groups, ", "))
	return nil
}
