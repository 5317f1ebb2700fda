package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"nc-warden.io/warden/internal/controller"
)

func newLoginCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the controller and cache the session",
		Long: `Log in with the configured credentials and cache the session for
later invocations. Other commands log in on demand; an explicit login
verifies credentials and forces a fresh session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}
			sess, err := a.Manager.Login(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s (site %s, %s)\n",
				sess.ControllerURL, sess.Site, familyLabel(sess.Family))
			return nil
		},
	}
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Destroy the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// No connected(): clearing local state must work without
			// controller credentials; the server-side call is best-effort.
			a, err := e.application()
			if err != nil {
				return err
			}
			if err := a.Manager.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out; cached session cleared.")
			return nil
		},
	}
}

type statusOutput struct {
	State         string     `json:"state" yaml:"state"`
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	ControllerURL string     `json:"controller_url" yaml:"controller_url"`
	Site          string     `json:"site" yaml:"site"`
	Family        string     `json:"controller_family,omitempty" yaml:"controller_family,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func newStatusCmd(e *env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session state without contacting the controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}

			st := statusOutput{
				State:         a.Manager.State().String(),
				ControllerURL: a.Manager.URL(),
				Site:          a.Manager.Site(),
			}
			if sess := a.Manager.Peek(); sess != nil {
				st.Authenticated = a.Manager.State() != controller.StateFailed
				st.Family = string(sess.Family)
				created := sess.CreatedAt
				st.CreatedAt = &created
				expires := sess.ExpiresAt()
				st.ExpiresAt = &expires
			}

			return render(cmd.OutOrStdout(), output, st, func(out io.Writer) error {
				return renderStatusTable(out, st)
			})
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func renderStatusTable(out io.Writer, st statusOutput) error {
	w := newTabWriter(out)
	fmt.Fprintf(w, "State:\t%s\n", st.State)
	if st.ControllerURL != "" {
		fmt.Fprintf(w, "Controller:\t%s (site %s)\n", st.ControllerURL, st.Site)
	} else {
		fmt.Fprintf(w, "Controller:\tnot configured\n")
	}
	if st.Family != "" {
		fmt.Fprintf(w, "Family:\t%s\n", familyLabel(controller.Family(st.Family)))
	}
	if st.CreatedAt != nil {
		fmt.Fprintf(w, "Created:\t%s\n", st.CreatedAt.Local().Format(time.RFC1123))
	}
	if st.ExpiresAt != nil {
		remaining := time.Until(*st.ExpiresAt).Round(time.Minute)
		if remaining > 0 {
			fmt.Fprintf(w, "Expires:\t%s (in %s)\n", st.ExpiresAt.Local().Format(time.RFC1123), remaining)
		} else {
			fmt.Fprintf(w, "Expires:\texpired\n")
		}
	}
	return w.Flush()
}

func familyLabel(f controller.Family) string {
	switch f {
	case controller.FamilyUDM:
		return "UniFi OS"
	case controller.FamilyLegacy:
		return "legacy controller"
	default:
		return string(f)
	}
}
