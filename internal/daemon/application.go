package daemon

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/The-Promised-Neverland/navlink/internal/agent"
	"github.com/The-Promised-Neverland/navlink/internal/broker"
	"github.com/The-Promised-Neverland/navlink/internal/config"
	"github.com/The-Promised-Neverland/navlink/internal/control"
	"github.com/The-Promised-Neverland/navlink/internal/navsource"
	"github.com/The-Promised-Neverland/navlink/internal/settings"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

const sourceRetryDelay = 5 * time.Second

// Application wires the publisher to its navigation sources, its settings
// file and the control server.
type Application struct {
	config    *config.Config
	store     *settings.FileStore
	publisher *agent.Publisher
	ingest    *navsource.Ingest
	chrome    *navsource.Chrome
	server    *control.Server
}

func NewApplication(cfg *config.Config, dial broker.Factory) *Application {
	store := settings.NewFileStore(cfg.SettingsPath())
	publisher := agent.NewPublisher(store, dial)
	ingest := navsource.NewIngest()

	app := &Application{
		config:    cfg,
		store:     store,
		publisher: publisher,
		ingest:    ingest,
		server:    control.NewServer(cfg.ControlAddr(), control.NewController(publisher), ingest),
	}
	sources := []navsource.Source{ingest}
	if url := cfg.ChromeDebugURL(); url != "" {
		app.chrome = navsource.NewChrome(url)
		sources = append(sources, app.chrome)
	}
	for _, src := range sources {
		src.Subscribe(publisher.OnNavigationCompleted)
	}
	return app
}

// Run blocks until appCtx is cancelled or a component fails.
func (app *Application) Run(appCtx context.Context) error {
	logger.Log.Info("Application starting",
		"settings", app.store.Path(), "control", app.config.ControlAddr(), "chrome", app.chrome != nil)
	g, ctx := errgroup.WithContext(appCtx)
	g.Go(func() error {
		return app.publisher.Run(ctx)
	})
	g.Go(func() error {
		return app.server.Run(ctx)
	})
	g.Go(func() error {
		app.watchSettings(ctx)
		return nil
	})
	if app.chrome != nil {
		g.Go(func() error {
			app.superviseChrome(ctx)
			return nil
		})
	}
	if app.config.AutoConnect() {
		g.Go(func() error {
			if err := app.publisher.Connect(ctx); err != nil && ctx.Err() == nil {
				logger.Log.Warn("Auto-connect not applied", "err", err)
			}
			return nil
		})
	}
	err := g.Wait()
	logger.Log.Info("Application stopped", "err", err)
	return err
}

// watchSettings reloads the publisher whenever the settings file changes, so
// edits made by `navlink configure` or by hand take effect.
func (app *Application) watchSettings(ctx context.Context) {
	w, err := settings.NewWatcher(app.store.Path(), ctx)
	if err != nil {
		logger.Log.Warn("Failed to create settings watcher", "err", err)
		return
	}
	defer w.Stop()
	if err := w.Start(); err != nil {
		logger.Log.Warn("Failed to start settings watcher", "err", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			logger.Log.Info("Settings file changed", "path", ev.Path, "op", ev.Op.String())
			if err := app.publisher.Reload(ctx); err != nil && ctx.Err() == nil {
				logger.Log.Warn("Reload not applied", "err", err)
			}
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			logger.Log.Error("Settings watcher error", "err", err)
		}
	}
}

// superviseChrome keeps the Chrome source attached, retrying while the
// browser is unreachable.
func (app *Application) superviseChrome(ctx context.Context) {
	for {
		err := app.chrome.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Log.Warn("Chrome navigation source unavailable", "err", err, "retry", sourceRetryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sourceRetryDelay):
		}
	}
}
