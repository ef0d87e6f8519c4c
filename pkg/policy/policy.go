// Package policy configures how the operating system starts and restarts the
// installed service.
package policy

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/The-Promised-Neverland/navlink/internal/config"
	"github.com/The-Promised-Neverland/navlink/pkg/utils"
)

type ServicePolicy interface {
	ConfigureAutoStart() error
	ConfigureRestartPolicy() error
}

// runner executes a service-manager command and returns its output.
type runner func(name string, args ...string) (string, error)

var defaultRunner runner = utils.RunCommand

func NewServicePolicy(cfg *config.Config) (ServicePolicy, error) {
	switch runtime.GOOS {
	case "windows":
		return NewWindowsPolicy(cfg), nil
	case "linux":
		return NewLinuxPolicy(cfg), nil
	case "darwin":
		return NewDarwinPolicy(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

// serviceEnv is the environment the service is started with. Services start in
// another working directory, so relative paths are resolved here.
func serviceEnv(cfg *config.Config) []envVar {
	env := map[string]string{
		"SETTINGS_PATH": absPath(cfg.SettingsPath()),
		"LOG_FILE":      absPath(cfg.LogFile()),
		"CONTROL_ADDR":  cfg.ControlAddr(),
	}
	if url := cfg.ChromeDebugURL(); url != "" {
		env["CHROME_DEBUG_URL"] = url
	}
	if cfg.AutoConnect() {
		env["AUTO_CONNECT"] = "true"
	}
	vars := make([]envVar, 0, len(env))
	for k, v := range env {
		vars = append(vars, envVar{Key: k, Value: v})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Key < vars[j].Key })
	return vars
}

type envVar struct {
	Key   string
	Value string
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
