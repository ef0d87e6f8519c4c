// Package settings holds the broker settings edited by the user and the store
// they are persisted in.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned by Load when the settings file does not parse.
var ErrMalformed = errors.New("settings: malformed file")

// AgentConfig is read once per connect attempt and does not change for the
// lifetime of the connection built from it.
type AgentConfig struct {
	Identity     string `yaml:"identity"`
	IncludePaths bool   `yaml:"paths"`
	Hostname     string `yaml:"hostname"`
	Port         int    `yaml:"port"`
	UseTLS       bool   `yaml:"ssl"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
}

func Defaults() AgentConfig {
	return AgentConfig{
		Identity:     "",
		IncludePaths: false,
		Hostname:     "localhost",
		Port:         8080,
		UseTLS:       true,
		Username:     "",
		Password:     "",
	}
}

// Store is the configuration collaborator. Load resolves with defaults for
// anything that was never saved.
type Store interface {
	Load(ctx context.Context) (AgentConfig, error)
	Save(ctx context.Context, cfg AgentConfig) error
}

// FileStore keeps settings in a YAML file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored settings layered over Defaults. When the file exists
// but cannot be read or parsed, the defaults are returned together with the error.
func (s *FileStore) Load(ctx context.Context) (AgentConfig, error) {
	cfg := Defaults()
	if err := ctx.Err(); err != nil {
		return cfg, err
	}
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read settings %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Defaults(), fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	return cfg, nil
}

// Save replaces the file atomically so a concurrent Load never sees a partial write.
func (s *FileStore) Save(ctx context.Context, cfg AgentConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".navlink-settings-*")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu  sync.Mutex
	cfg AgentConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cfg: Defaults()}
}

func (s *MemoryStore) Load(ctx context.Context) (AgentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, ctx.Err()
}

func (s *MemoryStore) Save(ctx context.Context, cfg AgentConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}
