package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"nc-warden.io/warden/internal/app"
	"nc-warden.io/warden/internal/controller"
	"nc-warden.io/warden/internal/service"
)

func newClientsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Inspect and act on controller clients",
	}
	cmd.AddCommand(
		newClientsListCmd(e),
		newClientsShowCmd(e),
		newClientsCountCmd(e),
		newClientActionCmd(e, "block", "Block a client from the network"),
		newClientActionCmd(e, "unblock", "Lift a client's block"),
		newClientActionCmd(e, "kick", "Disconnect a client (it may reconnect)"),
	)
	return cmd
}

// clientView is the CLI-facing shape of a client for json/yaml output.
type clientView struct {
	MAC      string `json:"mac" yaml:"mac"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	IP       string `json:"ip,omitempty" yaml:"ip,omitempty"`
	Network  string `json:"network,omitempty" yaml:"network,omitempty"`
	Type     string `json:"connection_type" yaml:"connection_type"`
	Vendor   string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	AP       string `json:"ap,omitempty" yaml:"ap,omitempty"`
	Guest    bool   `json:"guest,omitempty" yaml:"guest,omitempty"`
	Blocked  bool   `json:"blocked" yaml:"blocked"`
	Online   bool   `json:"online" yaml:"online"`
}

func clientViewOf(c *controller.Client) clientView {
	ap := c.UplinkName
	if ap == "" {
		ap = c.APMAC
	}
	return clientView{
		MAC:      c.MAC,
		Name:     c.Name,
		Hostname: c.Hostname,
		IP:       c.IP,
		Network:  c.NetworkName(),
		Type:     c.ConnectionType(),
		Vendor:   c.OUI,
		AP:       ap,
		Guest:    c.IsGuest,
		Blocked:  c.Blocked,
		Online:   c.Online,
	}
}

// clientListing picks the source: active clients by default, the merged
// snapshot with --all so offline clients appear too.
func clientListing(ctx context.Context, a *app.Application, all bool) ([]controller.Client, error) {
	if all {
		return controller.Snapshot(ctx, a.Ctrl)
	}
	return a.Ctrl.ListActiveClients(ctx)
}

type clientsListOptions struct {
	all      bool
	network  string
	wired    bool
	wireless bool
	blocked  bool
	guest    bool
	output   string
}

func (o *clientsListOptions) bindToCmd(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.all, "all", "a", false, "Include offline clients the controller remembers")
	cmd.Flags().StringVar(&o.network, "network", "", "Only clients whose network/SSID name contains this")
	cmd.Flags().BoolVar(&o.wired, "wired", false, "Only wired clients")
	cmd.Flags().BoolVar(&o.wireless, "wireless", false, "Only wireless clients")
	cmd.Flags().BoolVar(&o.blocked, "blocked", false, "Only blocked clients")
	cmd.Flags().BoolVar(&o.guest, "guest", false, "Only guest clients")
	addOutputFlag(cmd, &o.output)
}

func newClientsListCmd(e *env) *cobra.Command {
	opts := &clientsListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients known to the controller",
		Example: `  # Active clients
  warden clients list

  # Everything on the kids' SSID, including offline devices
  warden clients list --all --network kids

  # Blocked clients as JSON
  warden clients list --all --blocked -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}

			clients, err := clientListing(cmd.Context(), a, opts.all)
			if err != nil {
				return err
			}
			filter := service.Filter{
				Network:  opts.network,
				Wired:    opts.wired,
				Wireless: opts.wireless,
				Blocked:  opts.blocked,
				Guest:    opts.guest,
			}
			clients, err = filter.Apply(clients)
			if err != nil {
				return err
			}

			sort.Slice(clients, func(i, j int) bool {
				return strings.ToLower(clients[i].DisplayName()) < strings.ToLower(clients[j].DisplayName())
			})
			views := make([]clientView, 0, len(clients))
			for i := range clients {
				views = append(views, clientViewOf(&clients[i]))
			}

			return render(cmd.OutOrStdout(), opts.output, views, func(out io.Writer) error {
				return renderClientsTable(out, views)
			})
		},
	}
	opts.bindToCmd(cmd)
	return cmd
}

func renderClientsTable(out io.Writer, views []clientView) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(out, "No clients found.")
		return err
	}

	w := newTabWriter(out)
	fmt.Fprintln(w, "NAME\tMAC\tIP\tNETWORK\tTYPE\tSTATUS")
	for _, v := range views {
		name := v.Name
		if name == "" {
			name = v.Hostname
		}
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			name, v.MAC, dash(v.IP), dash(v.Network), v.Type, clientStatus(v))
	}
	return w.Flush()
}

func clientStatus(v clientView) string {
	switch {
	case v.Blocked:
		return "blocked"
	case v.Online:
		return "online"
	default:
		return "offline"
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newClientsShowCmd(e *env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <client>",
		Short: "Show one client by MAC, name, or hostname",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}
			client, err := service.NewIdentifier(a.Ctrl).Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			view := clientViewOf(client)
			return render(cmd.OutOrStdout(), output, view, func(out io.Writer) error {
				return renderClientDetail(out, view)
			})
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func renderClientDetail(out io.Writer, v clientView) error {
	w := newTabWriter(out)
	fmt.Fprintf(w, "MAC:\t%s\n", v.MAC)
	if v.Name != "" {
		fmt.Fprintf(w, "Name:\t%s\n", v.Name)
	}
	if v.Hostname != "" {
		fmt.Fprintf(w, "Hostname:\t%s\n", v.Hostname)
	}
	fmt.Fprintf(w, "IP:\t%s\n", dash(v.IP))
	fmt.Fprintf(w, "Network:\t%s\n", dash(v.Network))
	fmt.Fprintf(w, "Type:\t%s\n", v.Type)
	if v.Vendor != "" {
		fmt.Fprintf(w, "Vendor:\t%s\n", v.Vendor)
	}
	if v.AP != "" {
		fmt.Fprintf(w, "AP:\t%s\n", v.AP)
	}
	fmt.Fprintf(w, "Guest:\t%t\n", v.Guest)
	fmt.Fprintf(w, "Status:\t%s\n", clientStatus(v))
	return w.Flush()
}

func newClientsCountCmd(e *env) *cobra.Command {
	var by string
	var all bool
	var output string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count clients grouped by type, network, vendor, ap, or experience",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			grouping, err := service.ParseCountBy(by)
			if err != nil {
				return err
			}
			a, err := e.connected()
			if err != nil {
				return err
			}
			clients, err := clientListing(cmd.Context(), a, all)
			if err != nil {
				return err
			}

			counts := service.CountClients(clients, grouping)
			result := struct {
				By     string         `json:"by" yaml:"by"`
				Counts map[string]int `json:"counts" yaml:"counts"`
				Total  int            `json:"total" yaml:"total"`
			}{By: string(grouping), Counts: counts, Total: len(clients)}

			return render(cmd.OutOrStdout(), output, result, func(out io.Writer) error {
				w := newTabWriter(out)
				fmt.Fprintf(w, "%s\tCOUNT\n", strings.ToUpper(string(grouping)))
				for _, key := range service.SortedCountKeys(counts) {
					fmt.Fprintf(w, "%s\t%d\n", key, counts[key])
				}
				fmt.Fprintf(w, "TOTAL\t%d\n", result.Total)
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", string(service.CountByType), "Grouping: type, network, vendor, ap, experience")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include offline clients the controller remembers")
	addOutputFlag(cmd, &output)
	return cmd
}

func newClientActionCmd(e *env, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <client>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := service.NewIdentifier(a.Ctrl).Resolve(ctx, args[0])
			if err != nil {
				return err
			}

			switch action {
			case "block":
				err = a.Ctrl.BlockClient(ctx, client.MAC)
			case "unblock":
				err = a.Ctrl.UnblockClient(ctx, client.MAC)
			case "kick":
				err = a.Ctrl.KickClient(ctx, client.MAC)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n",
				actionDone(action), client.DisplayName(), client.MAC)
			return nil
		},
	}
}

func actionDone(action string) string {
	switch action {
	case "block":
		return "Blocked"
	case "unblock":
		return "Unblocked"
	case "kick":
		return "Kicked"
	default:
		return action
	}
}
