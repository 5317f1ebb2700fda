package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"nc-warden.io/warden/internal/controller"
)

func newDevicesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"device"},
		Short:   "Inspect and manage controller-managed network gear",
	}
	cmd.AddCommand(
		newDevicesListCmd(e),
		newDevicesRestartCmd(e),
		newDevicesLocateCmd(e),
	)
	return cmd
}

// deviceView is the render shape for a single device.
type deviceView struct {
	MAC     string `json:"mac" yaml:"mac"`
	Name    string `json:"name" yaml:"name"`
	Model   string `json:"model" yaml:"model"`
	Type    string `json:"type" yaml:"type"`
	IP      string `json:"ip" yaml:"ip"`
	Version string `json:"version" yaml:"version"`
	State   string `json:"state" yaml:"state"`
}

func deviceViewOf(d *controller.Device) deviceView {
	return deviceView{
		MAC:     d.MAC,
		Name:    d.Name,
		Model:   d.Model,
		Type:    strings.ToUpper(d.Type),
		IP:      d.IP,
		Version: d.Version,
		State:   deviceState(d.State),
	}
}

// deviceState maps the controller's numeric device state to a label.
// Unlisted codes show as transitional states rather than failing.
func deviceState(state int) string {
	switch state {
	case 0:
		return "offline"
	case 1:
		return "connected"
	case 4:
		return "upgrading"
	case 5:
		return "provisioning"
	case 6:
		return "heartbeat missed"
	default:
		return fmt.Sprintf("state %d", state)
	}
}

func newDevicesListCmd(e *env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List adopted devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}
			devices, err := a.Ctrl.ListDevices(cmd.Context())
			if err != nil {
				return err
			}

			views := make([]deviceView, 0, len(devices))
			for i := range devices {
				views = append(views, deviceViewOf(&devices[i]))
			}
			sort.Slice(views, func(i, j int) bool {
				return strings.ToLower(views[i].Name) < strings.ToLower(views[j].Name)
			})

			return render(cmd.OutOrStdout(), output, views, func(out io.Writer) error {
				if len(views) == 0 {
					_, err := fmt.Fprintln(out, "No devices found.")
					return err
				}
				w := newTabWriter(out)
				fmt.Fprintln(w, "NAME\tMAC\tMODEL\tTYPE\tIP\tVERSION\tSTATE")
				for _, v := range views {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						dash(v.Name), v.MAC, dash(v.Model), dash(v.Type),
						dash(v.IP), dash(v.Version), v.State)
				}
				return w.Flush()
			})
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func newDevicesRestartCmd(e *env) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restart <mac>",
		Short: "Reboot a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}
			mac := controller.NormalizeMAC(args[0])

			ok, err := confirm(cmd, yes,
				fmt.Sprintf("Restart device %s? Clients on it will drop. Continue?", mac))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}

			if err := a.Ctrl.RestartDevice(cmd.Context(), mac); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restart requested for %s\n", mac)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newDevicesLocateCmd(e *env) *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "locate <mac>",
		Short: "Flash a device's locate LED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}
			mac := controller.NormalizeMAC(args[0])

			if err := a.Ctrl.SetLocate(cmd.Context(), mac, !off); err != nil {
				return err
			}
			if off {
				fmt.Fprintf(cmd.OutOrStdout(), "Locate LED off on %s\n", mac)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Locate LED flashing on %s\n", mac)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Stop the locate LED instead of starting it")
	return cmd
}
