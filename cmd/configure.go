package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/The-Promised-Neverland/navlink/internal/settings"
	"github.com/The-Promised-Neverland/navlink/pkg/idcommands"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

// autoIdentity asks configure to derive the identity from the machine.
const autoIdentity = "auto"

func (c *cli) configureCmd() *cobra.Command {
	var (
		next      settings.AgentConfig
		noConnect bool
	)
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Edit the broker settings, then ask the agent to connect with them",
		Long: `Only the flags given are changed; the rest keep their saved value.
Pass --identity auto to derive a stable identity from this machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := settings.NewFileStore(c.cfg.SettingsPath())
			cfg, err := store.Load(ctx)
			switch {
			case errors.Is(err, settings.ErrMalformed):
				// Saving below rewrites the file from the defaults plus the given flags.
				logger.Log.Warn("Ignoring unreadable settings file", "path", store.Path(), "err", err)
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; starting from defaults\n", err)
			case err != nil:
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("identity") {
				cfg.Identity = next.Identity
				if cfg.Identity == autoIdentity {
					cfg.Identity = idcommands.GenerateAgentID()
				}
			}
			if flags.Changed("host") {
				cfg.Hostname = next.Hostname
			}
			if flags.Changed("port") {
				if next.Port < 1 || next.Port > 65535 {
					return fmt.Errorf("port %d out of range", next.Port)
				}
				cfg.Port = next.Port
			}
			if flags.Changed("ssl") {
				cfg.UseTLS = next.UseTLS
			}
			if flags.Changed("paths") {
				cfg.IncludePaths = next.IncludePaths
			}
			if flags.Changed("username") {
				cfg.Username = next.Username
			}
			if flags.Changed("password") {
				cfg.Password = next.Password
			}

			if err := store.Save(ctx, cfg); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Settings saved to %s (identity %q, broker %s:%d, tls %t)\n",
				store.Path(), cfg.Identity, cfg.Hostname, cfg.Port, cfg.UseTLS)
			if noConnect {
				return nil
			}
			if err := c.client().Connect(ctx); err != nil {
				return fmt.Errorf("settings saved but connect failed: %w", err)
			}
			fmt.Fprintln(out, "Connect requested")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&next.Identity, "identity", "", `identity used as client id and topic suffix ("auto" derives one)`)
	f.StringVar(&next.Hostname, "host", "", "broker hostname")
	f.IntVar(&next.Port, "port", 0, "broker websocket port")
	f.BoolVar(&next.UseTLS, "ssl", true, "connect over TLS")
	f.BoolVar(&next.IncludePaths, "paths", false, "publish the path of http visits")
	f.StringVar(&next.Username, "username", "", "broker username")
	f.StringVar(&next.Password, "password", "", "broker password")
	f.BoolVar(&noConnect, "no-connect", false, "only save the settings")
	return cmd
}
