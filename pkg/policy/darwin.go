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

const launchDaemonsDir = "/Library/LaunchDaemons"

var plistTemplate = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.Binary}}</string>
		<string>run</string>
	</array>
	<key>EnvironmentVariables</key>
	<dict>
{{- range .Env}}
		<key>{{.Key}}</key>
		<string>{{.Value}}</string>
{{- end}}
	</dict>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>/var/log/{{.LogName}}.out</string>
	<key>StandardErrorPath</key>
	<string>/var/log/{{.LogName}}.err</string>
</dict>
</plist>
`))

type DarwinPolicy struct {
	label      string
	binaryPath string
	env        []envVar
	plistDir   string
	run        runner
}

func NewDarwinPolicy(cfg *config.Config) *DarwinPolicy {
	return &DarwinPolicy{
		label:      cfg.ServiceName(),
		binaryPath: cfg.BinaryPath(),
		env:        serviceEnv(cfg),
		plistDir:   launchDaemonsDir,
		run:        defaultRunner,
	}
}

// ConfigureAutoStart writes the launchd job and reloads it. A missing job is
// not an error when booting out the previous definition.
func (p *DarwinPolicy) ConfigureAutoStart() error {
	plist, err := p.plist()
	if err != nil {
		return err
	}
	path := p.plistPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(plist), 0644); err != nil {
		return fmt.Errorf("write plist %s: %w", path, err)
	}
	_, _ = p.run("launchctl", "bootout", "system", path)
	if out, err := p.run("launchctl", "bootstrap", "system", path); err != nil {
		return fmt.Errorf("bootstrap %s: %w (%s)", p.label, err, strings.TrimSpace(out))
	}
	logger.Log.Info("launchd job loaded", "path", path)
	return nil
}

func (p *DarwinPolicy) ConfigureRestartPolicy() error {
	logger.Log.Info("launchd restarts the agent through KeepAlive", "label", p.label)
	return nil
}

func (p *DarwinPolicy) plistPath() string {
	return filepath.Join(p.plistDir, p.label+".plist")
}

func (p *DarwinPolicy) plist() (string, error) {
	var b strings.Builder
	err := plistTemplate.Execute(&b, struct {
		Label   string
		Binary  string
		Env     []envVar
		LogName string
	}{p.label, p.binaryPath, p.env, strings.ReplaceAll(p.label, ".", "_")})
	return b.String(), err
}
