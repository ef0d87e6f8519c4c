package policy

import (
	"fmt"
	"strings"

	"github.com/The-Promised-Neverland/navlink/internal/config"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

// Restart after 5s on the first three failures; the counter resets daily.
var windowsFailureActions = []string{"actions=restart/5000/restart/5000/restart/5000", "reset=86400"}

type WindowsPolicy struct {
	serviceName string
	run         runner
}

func NewWindowsPolicy(cfg *config.Config) *WindowsPolicy {
	return &WindowsPolicy{
		serviceName: cfg.ServiceName(),
		run:         defaultRunner,
	}
}

// ConfigureAutoStart delays the start until the network stack is up.
func (p *WindowsPolicy) ConfigureAutoStart() error {
	return p.sc("auto-start", "config", p.serviceName, "start=", "delayed-auto")
}

func (p *WindowsPolicy) ConfigureRestartPolicy() error {
	args := append([]string{"failure", p.serviceName}, windowsFailureActions...)
	return p.sc("restart policy", args...)
}

func (p *WindowsPolicy) sc(what string, args ...string) error {
	out, err := p.run("sc", args...)
	if err != nil {
		return fmt.Errorf("configure %s for %s: %w (%s)", what, p.serviceName, err, strings.TrimSpace(out))
	}
	logger.Log.Info("Windows service configured", "service", p.serviceName, "setting", what)
	return nil
}
