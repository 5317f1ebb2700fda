package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nc-warden.io/warden/internal/controller"
)

func newNetworksCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "networks",
		Aliases: []string{"network"},
		Short:   "Inspect configured networks",
	}
	cmd.AddCommand(newNetworksListCmd(e))
	return cmd
}

func newNetworksListCmd(e *env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}
			networks, err := a.Ctrl.ListNetworks(cmd.Context())
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), output, networks, func(out io.Writer) error {
				if len(networks) == 0 {
					_, err := fmt.Fprintln(out, "No networks configured.")
					return err
				}
				w := newTabWriter(out)
				fmt.Fprintln(w, "NAME\tPURPOSE\tSUBNET\tVLAN\tDHCP\tENABLED")
				for _, n := range networks {
					vlan := "-"
					if n.VLAN != 0 {
						vlan = fmt.Sprintf("%d", n.VLAN)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						n.Name, dash(n.Purpose), dash(n.Subnet), vlan,
						yesNo(n.DHCPEnabled), yesNo(n.Enabled))
				}
				return w.Flush()
			})
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newEventsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the controller event log",
	}
	cmd.AddCommand(newEventsListCmd(e))
	return cmd
}

func newEventsListCmd(e *env) *cobra.Command {
	var output string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent controller events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}
			events, err := a.Ctrl.ListEvents(cmd.Context(), limit)
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), output, events, func(out io.Writer) error {
				if len(events) == 0 {
					_, err := fmt.Fprintln(out, "No recent events.")
					return err
				}
				w := newTabWriter(out)
				fmt.Fprintln(w, "TIME\tSUBSYSTEM\tMESSAGE")
				for _, ev := range events {
					fmt.Fprintf(w, "%s\t%s\t%s\n",
						eventTime(&ev), dash(ev.Subsystem), dash(ev.Message))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events")
	addOutputFlag(cmd, &output)
	return cmd
}

// eventTime prefers the controller's preformatted timestamp over the
// millisecond epoch it also carries.
func eventTime(ev *controller.Event) string {
	if ev.Datetime != "" {
		return ev.Datetime
	}
	if ev.Time > 0 {
		return time.UnixMilli(ev.Time).Format(time.RFC3339)
	}
	return "-"
}

func newHealthCmd(e *env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show per-subsystem controller health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}
			health, err := a.Ctrl.Health(cmd.Context())
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), output, health, func(out io.Writer) error {
				w := newTabWriter(out)
				fmt.Fprintln(w, "SUBSYSTEM\tSTATUS\tCLIENTS\tGUESTS\tAPS")
				for _, h := range health {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
						strings.ToUpper(h.Subsystem), h.Status, h.NumUser, h.NumGuest, h.NumAP)
				}
				return w.Flush()
			})
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}
