package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/The-Promised-Neverland/navlink/internal/feed"
)

func (c *cli) feedCmd() *cobra.Command {
	var bridgeURL string
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the newest visits relayed by a bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bridgeURL == "" {
				bridgeURL = c.cfg.FeedURL()
			}
			return runFeed(cmd.Context(), bridgeURL)
		},
	}
	cmd.Flags().StringVar(&bridgeURL, "url", "", "bridge base URL (default $FEED_URL)")
	return cmd
}

func runFeed(parent context.Context, bridgeURL string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var program *tea.Program
	sub := feed.NewSubscriber(bridgeURL, func(it feed.Item) {
		program.Send(feed.ItemMsg(it))
	})
	sub.OnState(func(s feed.ConnState) {
		program.Send(feed.StateMsg(s))
	})
	program = tea.NewProgram(feed.NewModel(sub.URL()), tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sub.Run(ctx)
	}()
	_, err := program.Run()
	cancel()
	<-done

	if errors.Is(err, tea.ErrProgramKilled) && parent.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("run feed view: %w", err)
	}
	return nil
}
