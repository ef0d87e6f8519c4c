package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/The-Promised-Neverland/navlink/internal/agent"
	"github.com/The-Promised-Neverland/navlink/internal/models"
)

// statusPollInterval matches how often the settings popup refreshed.
const statusPollInterval = 500 * time.Millisecond

func (c *cli) connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Ask the running agent to (re)connect to the broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().Connect(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Connect requested")
			return nil
		},
	}
}

func (c *cli) disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Ask the running agent to drop its broker connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().Disconnect(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Disconnect requested")
			return nil
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the agent's connection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !watch {
				status, err := c.client().Status(cmd.Context())
				if err != nil {
					return err
				}
				printStatus(out, status)
				return nil
			}
			return c.watchStatus(cmd.Context(), out, statusPollInterval)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling and print every change")
	return cmd
}

// watchStatus prints the status whenever it changes until ctx is cancelled.
// An unreachable agent is reported once and polling continues.
func (c *cli) watchStatus(ctx context.Context, out io.Writer, interval time.Duration) error {
	client := c.client()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := ""
	for {
		status, err := client.Status(ctx)
		if ctx.Err() != nil {
			return nil
		}
		line := status
		if err != nil {
			line = "Unreachable"
		}
		if line != last {
			if err != nil {
				color.New(color.FgRed).Fprintf(out, "Agent unreachable: %v\n", err)
			} else {
				printStatus(out, status)
			}
			last = line
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printStatus(out io.Writer, status string) {
	statusColor(status).Fprintln(out, status)
}

func statusColor(status string) *color.Color {
	switch status {
	case agent.StatusConnected.String():
		return color.New(color.FgGreen, color.Bold)
	case agent.StatusFailed.String():
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgYellow)
	}
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the agent's health report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := c.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "System:  %s\n", health.Status)
			fmt.Fprintf(out, "Uptime:  %s\n", time.Duration(health.Uptime)*time.Second)
			fmt.Fprint(out, "Broker:  ")
			printStatus(out, health.Broker)
			fmt.Fprintf(out, "State:   %s\n", health.State)
			if m := health.HostMetrics; m != nil {
				fmt.Fprintf(out, "Host:    %s (%s)\n", m.Hostname, m.OS)
				fmt.Fprintf(out, "CPU:     %.1f%%\n", m.CPUUsage)
				fmt.Fprintf(out, "Memory:  %.1f%%\n", m.MemoryUsage)
				fmt.Fprintf(out, "Disk:    %.1f%%\n", m.DiskUsage)
			}
			return nil
		},
	}
}

func (c *cli) visitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "visit <url>",
		Short: "Report a completed navigation to the running agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := url.ParseRequestURI(args[0]); err != nil {
				return fmt.Errorf("invalid url %q: %w", args[0], err)
			}
			ev := models.NavigationEvent{URL: args[0], TimestampMillis: time.Now().UnixMilli()}
			return c.client().Navigate(cmd.Context(), ev)
		},
	}
}
