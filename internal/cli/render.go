package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"nc-warden.io/warden/internal/bulk"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", formatTable, "Output format: table, json, yaml")
}

// render writes v in the requested format, falling back to the
// command-provided table renderer for human output.
func render(out io.Writer, format string, v interface{}, table func(io.Writer) error) error {
	switch format {
	case "", formatTable:
		return table(out)
	case formatJSON:
		return renderJSON(out, v)
	case formatYAML:
		return renderYAML(out, v)
	default:
		return fmt.Errorf("unknown output format %q (want table, json, or yaml)", format)
	}
}

func renderJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func renderYAML(out io.Writer, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func newTabWriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

// confirm prompts before destructive bulk actions. --yes skips the
// prompt; anything but an explicit y/yes declines.
func confirm(cmd *cobra.Command, yes bool, prompt string) (bool, error) {
	if yes {
		return true, nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// renderBulkResult prints the aggregate and the per-member failures.
// The error return is non-nil when members failed, so callers exit
// non-zero and scripts notice partial failure.
func renderBulkResult(out io.Writer, res *bulk.Result) error {
	fmt.Fprintf(out, "%s: %d succeeded, %d already in target state, %d failed (of %d)\n",
		res.Action, res.Succeeded, res.Already, res.Failed, res.Total)

	if len(res.Failures) > 0 {
		macs := make([]string, 0, len(res.Failures))
		for mac := range res.Failures {
			macs = append(macs, mac)
		}
		sort.Strings(macs)

		w := newTabWriter(out)
		fmt.Fprintln(w, "MAC\tERROR")
		for _, mac := range macs {
			fmt.Fprintf(w, "%s\t%s\n", mac, res.Failures[mac])
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if !res.Ok() {
		return fmt.Errorf("%d of %d members failed", res.Failed, res.Total)
	}
	return nil
}
