package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/The-Promised-Neverland/navlink/internal/config"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

const systemdDir = "/etc/systemd/system"

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description={{.Description}}
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.Binary}} run
{{- range .Env}}
Environment={{.Key}}={{.Value}}
{{- end}}
Restart=always
RestartSec=5
KillSignal=SIGTERM
TimeoutStopSec=30
NoNewPrivileges=true
ProtectSystem=full

[Install]
WantedBy=multi-user.target
`))

type LinuxPolicy struct {
	serviceName string
	description string
	binaryPath  string
	env         []envVar
	unitDir     string
	run         runner
}

func NewLinuxPolicy(cfg *config.Config) *LinuxPolicy {
	return &LinuxPolicy{
		serviceName: cfg.ServiceName(),
		description: cfg.ServiceDisplayName(),
		binaryPath:  cfg.BinaryPath(),
		env:         serviceEnv(cfg),
		unitDir:     systemdDir,
		run:         defaultRunner,
	}
}

// ConfigureAutoStart replaces the generated unit with one that carries the
// agent's environment and waits for the network the broker connection needs.
func (p *LinuxPolicy) ConfigureAutoStart() error {
	unit, err := p.unit()
	if err != nil {
		return err
	}
	unitPath := filepath.Join(p.unitDir, p.serviceName+".service")
	if err := os.WriteFile(unitPath, []byte(unit), 0644); err != nil {
		return fmt.Errorf("write unit %s: %w", unitPath, err)
	}
	if out, err := p.run("systemctl", "daemon-reload"); err != nil {
		logger.Log.Warn("systemctl daemon-reload failed", "err", err, "output", out)
	}
	if out, err := p.run("systemctl", "enable", p.serviceName); err != nil {
		return fmt.Errorf("enable %s: %w (%s)", p.serviceName, err, strings.TrimSpace(out))
	}
	logger.Log.Info("systemd unit installed", "path", unitPath)
	return nil
}

func (p *LinuxPolicy) ConfigureRestartPolicy() error {
	logger.Log.Info("systemd restarts the agent through Restart=always", "unit", p.serviceName)
	return nil
}

func (p *LinuxPolicy) unit() (string, error) {
	var b strings.Builder
	err := unitTemplate.Execute(&b, struct {
		Description string
		Binary      string
		Env         []envVar
	}{p.description, p.binaryPath, p.env})
	return b.String(), err
}
