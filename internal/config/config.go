package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
)

const (
	defaultControlAddr  = "127.0.0.1:7733"
	defaultSettingsFile = "navlink.yaml"
	defaultLogFile      = "navlink.log"
	defaultFeedURL      = "http://localhost:8080"
)

// Config holds process configuration. Fields are unexported to prevent modification.
// Broker settings live in the settings store instead, since they are edited at runtime.
type Config struct {
	serviceName        string
	serviceDisplayName string
	serviceDescription string
	controlAddr        string
	settingsPath       string
	chromeDebugURL     string
	logFile            string
	logLevel           string
	binaryPath         string
	autoConnect        bool
	feedURL            string
}

func defaultBinaryPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(
			os.Getenv("ProgramFiles"),
			"NavLink",
			"navlink.exe",
		)
	case "darwin", "linux":
		return "/usr/local/bin/navlink"
	default:
		return ""
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Config {
	_ = godotenv.Load() // ignore error if .env not found

	return &Config{
		serviceName:        getenv("SERVICE_NAME", "NavLink"),
		serviceDisplayName: getenv("SERVICE_DISPLAY_NAME", "NavLink Agent"),
		serviceDescription: getenv("SERVICE_DESCRIPTION", "Publishes browser navigation events to an MQTT broker"),
		controlAddr:        getenv("CONTROL_ADDR", defaultControlAddr),
		settingsPath:       getenv("SETTINGS_PATH", defaultSettingsFile),
		chromeDebugURL:     os.Getenv("CHROME_DEBUG_URL"),
		logFile:            getenv("LOG_FILE", defaultLogFile),
		logLevel:           getenv("LOG_LEVEL", "info"),
		binaryPath:         getenv("BINARY_PATH", defaultBinaryPath()),
		autoConnect:        os.Getenv("AUTO_CONNECT") == "true",
		feedURL:            getenv("FEED_URL", defaultFeedURL),
	}
}

// Getter methods (immutable from outside)

func (c *Config) ServiceName() string {
	return c.serviceName
}

func (c *Config) ServiceDisplayName() string {
	return c.serviceDisplayName
}

func (c *Config) ServiceDescription() string {
	return c.serviceDescription
}

// ControlAddr is the listen address of the command server, and the address the
// CLI commands dial.
func (c *Config) ControlAddr() string {
	return c.controlAddr
}

func (c *Config) SettingsPath() string {
	return c.settingsPath
}

// ChromeDebugURL is the DevTools endpoint of a running browser. Empty disables
// the Chrome navigation source.
func (c *Config) ChromeDebugURL() string {
	return c.chromeDebugURL
}

func (c *Config) LogFile() string {
	return c.logFile
}

func (c *Config) LogLevel() string {
	return c.logLevel
}

func (c *Config) BinaryPath() string {
	return c.binaryPath
}

// AutoConnect makes the daemon issue a connect once it has started.
func (c *Config) AutoConnect() bool {
	return c.autoConnect
}

// FeedURL is the bridge the feed view subscribes to.
func (c *Config) FeedURL() string {
	return c.feedURL
}
