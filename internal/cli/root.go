// Package cli implements the warden command tree. Commands stay thin:
// they parse flags, call into the core through app.Application, and
// render results. No business logic lives here.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nc-warden.io/warden/internal/app"
	"nc-warden.io/warden/internal/config"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
	"nc-warden.io/warden/internal/pkg/logger"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configDir string
	url       string
	site      string
	username  string
	password  string
	insecure  bool
	logLevel  string
	logFormat string
}

func (o *rootOptions) addFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configDir, "config-dir", "", "Directory holding config.yaml, session.json, and groups.json")
	pf.StringVar(&o.url, "url", "", "Controller URL (overrides config)")
	pf.StringVar(&o.site, "site", "", "Controller site (overrides config)")
	pf.StringVarP(&o.username, "username", "u", "", "Controller username (overrides config)")
	pf.StringVar(&o.password, "password", "", "Controller password (overrides config)")
	pf.BoolVarP(&o.insecure, "insecure", "k", false, "Skip TLS certificate verification")
	pf.StringVar(&o.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVar(&o.logFormat, "log-format", "console", "Log format: console or json")
}

// env holds lazily built dependencies. Config loads on first use so
// commands like version and hash-token never touch the filesystem.
type env struct {
	opts rootOptions

	levelFromFlag bool
	cfg           *config.Config
	app           *app.Application
}

func (e *env) config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := config.Load(e.opts.configDir)
	if err != nil {
		return nil, err
	}

	// Flags override file and environment.
	if e.opts.url != "" {
		cfg.Controller.URL = strings.TrimRight(e.opts.url, "/")
	}
	if e.opts.site != "" {
		cfg.Controller.Site = e.opts.site
	}
	if e.opts.username != "" {
		cfg.Controller.Username = e.opts.username
	}
	if e.opts.password != "" {
		cfg.Controller.Password = e.opts.password
	}
	if e.opts.insecure {
		cfg.Controller.InsecureSkipVerify = true
	}
	if !e.levelFromFlag {
		_ = logger.SetLevel(cfg.Log.Level)
	}

	e.cfg = cfg
	return cfg, nil
}

func (e *env) application() (*app.Application, error) {
	if e.app != nil {
		return e.app, nil
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	a, err := app.Bootstrap(cfg)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

// connected is application plus a check that controller settings are
// present. Commands that talk to the controller start here; pure group
// management does not, so it keeps working offline.
func (e *env) connected() (*app.Application, error) {
	a, err := e.application()
	if err != nil {
		return nil, err
	}
	if err := a.Config.RequireController(); err != nil {
		return nil, err
	}
	return a, nil
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "warden",
		Short: "Manage a local UniFi network controller",
		Long: `Warden manages clients, client groups, and devices on a local
UniFi-style network controller.

Sessions persist across invocations: warden logs in on demand and
re-authenticates when the controller expires the session. Client groups
live in a local store and can be resolved and acted on in bulk.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e.levelFromFlag = cmd.Flags().Changed("log-level")
			return logger.Init(e.opts.logLevel, e.opts.logFormat)
		},
	}
	e.opts.addFlags(root)

	root.AddCommand(
		newLoginCmd(e),
		newLogoutCmd(e),
		newStatusCmd(e),
		newClientsCmd(e),
		newGroupCmd(e),
		newDevicesCmd(e),
		newNetworksCmd(e),
		newEventsCmd(e),
		newHealthCmd(e),
		newServeCmd(e),
		newHashTokenCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and maps the outcome to a process exit code.
func Execute(ctx context.Context) int {
	e := &env{}
	root := newRootCmd(e)
	err := root.ExecuteContext(ctx)
	if e.app != nil {
		e.app.Shutdown()
	}
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", formatError(err))
		return 1
	}
	return 0
}

// formatError strips internal wrapping for terminal display. AppError
// messages are written for end users; everything else passes through.
func formatError(err error) string {
	if appErr, ok := apperrors.IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
