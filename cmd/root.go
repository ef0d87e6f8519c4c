// Package cmd implements the navlink command line: the daemon's service
// commands, the control commands that talk to a running agent, and the feed view.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/The-Promised-Neverland/navlink/internal/config"
	"github.com/The-Promised-Neverland/navlink/internal/control"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

// Commands annotated with consoleLogging log to stdout as well as the log
// file. The rest print their own output and keep logs in the file.
const (
	loggingAnnotation = "logging"
	consoleLogging    = "console"
)

var Version = "dev"

type cli struct {
	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "navlink",
		Short:         "Publishes completed browser navigations to an MQTT broker",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.cfg = config.New()
			if cmd.Annotations[loggingAnnotation] == consoleLogging {
				logger.Init(c.cfg.LogFile(), c.cfg.LogLevel())
			} else {
				logger.InitFileOnly(c.cfg.LogFile(), c.cfg.LogLevel())
			}
			return nil
		},
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.AddCommand(
		c.runCmd(),
		c.installCmd(),
		c.uninstallCmd(),
		c.restartCmd(),
		c.stopCmd(),
		c.connectCmd(),
		c.disconnectCmd(),
		c.statusCmd(),
		c.healthCmd(),
		c.visitCmd(),
		c.configureCmd(),
		c.feedCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (c *cli) client() *control.Client {
	return control.NewClient(c.cfg.ControlAddr())
}

func consoleCommand(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[loggingAnnotation] = consoleLogging
	return cmd
}
