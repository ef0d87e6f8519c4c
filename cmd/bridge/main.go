// Command bridge subscribes to visits on the broker and relays them to
// websocket and server-sent-event clients.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/The-Promised-Neverland/navlink/internal/bridge"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

func main() {
	cfg, err := bridge.LoadConfig()
	if err != nil {
		logger.Log.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogFile(), cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := bridge.NewHub(cfg.BufferSize(), cfg.CacheSize())
	subscriber := bridge.NewSubscriber(cfg.BrokerURL(), cfg.Topics(), hub)
	server := bridge.NewServer(hub, cfg.StaticDir())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return subscriber.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx, cfg.Addr())
	})
	if err := g.Wait(); err != nil {
		logger.Log.Error("Bridge stopped", "err", err)
		stop()
		os.Exit(1)
	}
	logger.Log.Info("Bridge stopped")
}
