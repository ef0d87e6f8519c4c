package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	kardianos "github.com/kardianos/service"

	"github.com/The-Promised-Neverland/navlink/internal/config"
	"github.com/The-Promised-Neverland/navlink/internal/settings"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
	"github.com/The-Promised-Neverland/navlink/pkg/policy"
)

const stopTimeout = 10 * time.Second

// DaemonManager runs the application as an OS service and manages the
// service's installation.
type DaemonManager struct {
	cfg       *config.Config
	app       *Application
	appCtx    context.Context
	appCancel context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
}

func NewDaemonManager(cfg *config.Config, app *Application) *DaemonManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &DaemonManager{
		cfg:       cfg,
		app:       app,
		appCtx:    ctx,
		appCancel: cancel,
		done:      make(chan struct{}),
	}
}

func (m *DaemonManager) serviceConfig() *kardianos.Config {
	return &kardianos.Config{
		Name:        m.cfg.ServiceName(),
		DisplayName: m.cfg.ServiceDisplayName(),
		Description: m.cfg.ServiceDescription(),
		Executable:  m.cfg.BinaryPath(),
		Arguments:   []string{"run"},
	}
}

func (m *DaemonManager) newService() (kardianos.Service, error) {
	if m.app == nil {
		return nil, fmt.Errorf("application cannot be nil")
	}
	return kardianos.New(m, m.serviceConfig())
}

func (m *DaemonManager) withService(fn func(kardianos.Service) error) error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return fn(s)
}

// Start and Stop implement kardianos.Interface. Start must not block.

func (m *DaemonManager) Start(s kardianos.Service) error {
	logger.Log.Info("Kardianos starting service", "service", s.String(), "platform", s.Platform())
	m.startOnce.Do(func() {
		go func() {
			defer close(m.done)
			if err := m.app.Run(m.appCtx); err != nil {
				logger.Log.Error("Application exited with error", "err", err)
			}
		}()
	})
	return nil
}

func (m *DaemonManager) Stop(s kardianos.Service) error {
	logger.Log.Info("Kardianos stopping service", "service", s.String())
	m.appCancel()
	select {
	case <-m.done:
	case <-time.After(stopTimeout):
		logger.Log.Warn("Application did not stop in time", "timeout", stopTimeout)
	}
	return nil
}

// InstallDaemon seeds the settings file, registers the service with the OS,
// applies the start and restart policy and starts it.
func (m *DaemonManager) InstallDaemon() error {
	if err := m.prepareSettings(); err != nil {
		return fmt.Errorf("failed to prepare settings: %w", err)
	}
	return m.withService(func(s kardianos.Service) error {
		if err := s.Install(); err != nil {
			if runtime.GOOS == "windows" {
				return fmt.Errorf("failed to install Windows service (requires administrator privileges): %w", err)
			}
			return fmt.Errorf("failed to install service: %w", err)
		}
		p, err := policy.NewServicePolicy(m.cfg)
		if err != nil {
			return err
		}
		if err := p.ConfigureAutoStart(); err != nil {
			return fmt.Errorf("failed to configure auto-start: %w", err)
		}
		if err := p.ConfigureRestartPolicy(); err != nil {
			return fmt.Errorf("failed to configure restart policy: %w", err)
		}
		if err := s.Start(); err != nil {
			return fmt.Errorf("service installed but failed to start: %w", err)
		}
		return nil
	})
}

// prepareSettings writes the defaults when no settings file exists yet, so
// the installed service and the configure command share one file.
func (m *DaemonManager) prepareSettings() error {
	store := m.app.store
	if _, err := os.Stat(store.Path()); err == nil {
		logger.Log.Info("Keeping existing settings", "path", store.Path())
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := store.Save(context.Background(), settings.Defaults()); err != nil {
		return err
	}
	logger.Log.Info("Wrote default settings", "path", store.Path())
	return nil
}

func (m *DaemonManager) UninstallDaemon() error {
	return m.withService(func(s kardianos.Service) error {
		if err := s.Stop(); err != nil {
			logger.Log.Warn("Failed to stop service before uninstall", "err", err)
		}
		return s.Uninstall()
	})
}

func (m *DaemonManager) RestartDaemon() error {
	return m.withService(kardianos.Service.Restart)
}

// RunDaemon runs the application under the service manager, or in the
// foreground when started interactively.
func (m *DaemonManager) RunDaemon() error {
	return m.withService(kardianos.Service.Run)
}

func (m *DaemonManager) StopDaemon() error {
	return m.withService(kardianos.Service.Stop)
}
