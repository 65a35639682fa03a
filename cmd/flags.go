package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/glossa/internal/config"
	"github.com/conneroisu/glossa/internal/translate"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Locale flags
	Locales []string
	All     bool

	// Generation flags
	Force    bool
	Diagnose bool

	// Output flags
	OutputFormat string
	Verbose      bool
	Quiet        bool
}

// AddStandardFlags adds the named flag sets to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "locale":
			addLocaleFlags(cmd, flags)
		case "generate":
			addGenerateFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addLocaleFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().VarP(&localesValue{locales: &flags.Locales}, "locale", "L", "Locale to generate (repeatable or comma-separated)")
	cmd.Flags().BoolVarP(&flags.All, "all", "a", false, "Generate every locale of the resource's group")
}

func addGenerateFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().BoolVarP(&flags.Force, "force", "f", false, "Regenerate even when the output is current")
	cmd.Flags().BoolVar(&flags.Diagnose, "diagnose", false, "Annotate every localized node with its provenance")
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")
}

// Mode returns the translation mode the flags select.
func (f *StandardFlags) Mode() translate.Mode {
	if f.Diagnose {
		return translate.Diagnose
	}
	return translate.Translate
}

var validFormats = []string{"table", "json", "yaml"}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.OutputFormat != "" {
		valid := false
		for _, format := range validFormats {
			if f.OutputFormat == format {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid output format %s, must be one of: %s",
				f.OutputFormat, strings.Join(validFormats, ", "))
		}
	}

	if f.Quiet && f.Verbose {
		return fmt.Errorf("cannot specify both --quiet and --verbose")
	}

	if f.All && len(f.Locales) > 0 {
		return fmt.Errorf("cannot specify both --all and --locale")
	}

	return nil
}

// localesValue collects canonical locale names. Each occurrence may hold a
// comma-separated list.
type localesValue struct {
	locales *[]string
}

var _ pflag.Value = (*localesValue)(nil)

func (v *localesValue) String() string {
	if v.locales == nil {
		return ""
	}
	return strings.Join(*v.locales, ",")
}

func (v *localesValue) Set(s string) error {
	for _, name := range strings.Split(s, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		canonical, err := config.CanonicalLocale(name)
		if err != nil {
			return err
		}
		*v.locales = append(*v.locales, canonical)
	}
	return nil
}

func (v *localesValue) Type() string {
	return "locales"
}
