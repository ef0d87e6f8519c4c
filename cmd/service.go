package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/The-Promised-Neverland/navlink/internal/broker"
	"github.com/The-Promised-Neverland/navlink/internal/daemon"
)

func (c *cli) manager() *daemon.DaemonManager {
	app := daemon.NewApplication(c.cfg, broker.NewMQTT)
	return daemon.NewDaemonManager(c.cfg, app)
}

func (c *cli) runCmd() *cobra.Command {
	return consoleCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the agent in the foreground or under the service manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.manager().RunDaemon()
		},
	})
}

func (c *cli) installCmd() *cobra.Command {
	return consoleCommand(&cobra.Command{
		Use:   "install",
		Short: "Install the agent as a service and start it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.manager().InstallDaemon(); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Service %s installed\n", c.cfg.ServiceName())
			return nil
		},
	})
}

func (c *cli) uninstallCmd() *cobra.Command {
	return consoleCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Stop and remove the agent service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.manager().UninstallDaemon(); err != nil {
				return err
			}
			color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "Service %s removed\n", c.cfg.ServiceName())
			return nil
		},
	})
}

func (c *cli) restartCmd() *cobra.Command {
	return consoleCommand(&cobra.Command{
		Use:   "restart",
		Short: "Restart the agent service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.manager().RestartDaemon()
		},
	})
}

func (c *cli) stopCmd() *cobra.Command {
	return consoleCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the agent service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.manager().StopDaemon()
		},
	})
}
