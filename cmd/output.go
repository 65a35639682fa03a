package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/glossa/internal/orchestrator"
)

// resultView is the printable form of one localized resource.
type resultView struct {
	Resource     string   `json:"resource" yaml:"resource"`
	Locale       string   `json:"locale" yaml:"locale"`
	Mode         string   `json:"mode" yaml:"mode"`
	Status       string   `json:"status" yaml:"status"`
	Reason       string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	Output       string   `json:"output" yaml:"output"`
	Fingerprint  string   `json:"fingerprint" yaml:"fingerprint"`
	Found        int      `json:"found" yaml:"found"`
	Fallback     int      `json:"fallback" yaml:"fallback"`
	Missing      []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

func newResultView(r *orchestrator.Result, verbose bool) resultView {
	v := resultView{
		Resource:    r.Resource,
		Locale:      r.Locale,
		Mode:        r.Mode.String(),
		Status:      "current",
		Output:      r.Output,
		Fingerprint: r.Fingerprint,
	}
	if r.Regenerated {
		v.Status = "generated"
		v.Reason = r.Reason
	}
	if r.Stats != nil {
		v.Found = r.Stats.Found
		v.Fallback = r.Stats.Fallback
		v.Missing = r.Stats.Missing
	}
	if verbose {
		v.Dependencies = r.Dependencies
	}
	return v
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeYAML(w io.Writer, v interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(v)
}

// writeStructured encodes v as JSON or YAML. It reports false for the
// table format, which every command renders itself.
func writeStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case "json":
		return true, writeJSON(w, v)
	case "yaml":
		return true, writeYAML(w, v)
	default:
		return false, nil
	}
}

func shortFingerprint(f string) string {
	if len(f) > 12 {
		return f[:12]
	}
	return f
}

func writeResults(w io.Writer, flags *StandardFlags, results []*orchestrator.Result) error {
	if flags.Quiet {
		return nil
	}

	views := make([]resultView, len(results))
	for i, r := range results {
		views[i] = newResultView(r, flags.Verbose)
	}
	if ok, err := writeStructured(w, flags.OutputFormat, views); ok {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "RESOURCE\tLOCALE\tSTATUS\tOUTPUT\tFINGERPRINT"
	if flags.Verbose {
		header += "\tREASON\tFOUND\tFALLBACK\tMISSING"
	}
	fmt.Fprintln(tw, header)

	for _, v := range views {
		row := fmt.Sprintf("%s\t%s\t%s\t%s\t%s", v.Resource, v.Locale, v.Status, v.Output, shortFingerprint(v.Fingerprint))
		if flags.Verbose {
			row += fmt.Sprintf("\t%s\t%d\t%d\t%s", v.Reason, v.Found, v.Fallback, strings.Join(v.Missing, ","))
		}
		fmt.Fprintln(tw, row)
	}
	return tw.Flush()
}
