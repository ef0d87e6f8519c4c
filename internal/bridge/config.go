// Package bridge relays visits published on the broker to websocket and
// server-sent-event clients.
package bridge

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultPort       = "8080"
	defaultTopic      = "Browsing/#"
	defaultBufferSize = 100
	defaultCacheSize  = 50
)

type Config struct {
	port       string
	brokerURL  string
	topics     []string
	bufferSize int
	cacheSize  int
	staticDir  string
	logFile    string
	logLevel   string
}

// LoadConfig reads the bridge configuration from the environment, after
// loading an optional .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		port:      os.Getenv("VCAP_APP_PORT"),
		brokerURL: os.Getenv("BROKER_URL"),
		staticDir: os.Getenv("STATIC_DIR"),
		logFile:   os.Getenv("LOG_FILE"),
		logLevel:  getenv("LOG_LEVEL", "info"),
	}
	if cfg.port == "" {
		cfg.port = getenv("PORT", defaultPort)
	}
	for _, t := range strings.Split(getenv("TOPIC", defaultTopic), ",") {
		if t = strings.TrimSpace(t); t != "" {
			cfg.topics = append(cfg.topics, t)
		}
	}
	var err error
	if cfg.bufferSize, err = intEnv("BUFFER_SIZE", defaultBufferSize); err != nil {
		return nil, err
	}
	if cfg.cacheSize, err = intEnv("CACHE_SIZE", defaultCacheSize); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.brokerURL == "" {
		return errors.New("BROKER_URL is required")
	}
	if len(c.topics) == 0 {
		return errors.New("TOPIC must name at least one topic")
	}
	if c.bufferSize < 1 {
		return fmt.Errorf("BUFFER_SIZE must be positive, got %d", c.bufferSize)
	}
	if c.cacheSize < 0 {
		return fmt.Errorf("CACHE_SIZE must not be negative, got %d", c.cacheSize)
	}
	// Replayed visits must leave room in a new client's buffer for live ones.
	if c.cacheSize > c.bufferSize/2 {
		return fmt.Errorf("CACHE_SIZE (%d) must be at most half of BUFFER_SIZE (%d)", c.cacheSize, c.bufferSize)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func (c *Config) Addr() string {
	return ":" + c.port
}

func (c *Config) BrokerURL() string {
	return c.brokerURL
}

func (c *Config) Topics() []string {
	return c.topics
}

func (c *Config) BufferSize() int {
	return c.bufferSize
}

func (c *Config) CacheSize() int {
	return c.cacheSize
}

// StaticDir is served at the root when set.
func (c *Config) StaticDir() string {
	return c.staticDir
}

// LogFile is empty when logs only go to stdout.
func (c *Config) LogFile() string {
	return c.logFile
}

func (c *Config) LogLevel() string {
	return c.logLevel
}
