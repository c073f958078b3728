// Package config handles configuration loading and validation for scmd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/colonyops/scmd/pkg/tmpl"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	GitPath       string            `yaml:"git_path"`
	HgPath        string            `yaml:"hg_path"`
	SvnPath       string            `yaml:"svn_path"`
	SvnadminPath  string            `yaml:"svnadmin_path"`
	Server        ServerConfig      `yaml:"server"`
	WorkingCopies WorkingCopyConfig `yaml:"working_copies"`
	Cache         CacheConfig       `yaml:"cache"`
	LFS           LFSConfig         `yaml:"lfs"`
	Hooks         HooksConfig       `yaml:"hooks"`
	Merge         MergeConfig       `yaml:"merge"`
	Database      DatabaseConfig    `yaml:"database"`
	Theme         string            `yaml:"theme"`
	DataDir       string            `yaml:"-"` // set by caller, not from config file
}

// ServerConfig configures the hook callback endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// BaseURL is the address external hook processes call back to.
	// Defaults to http://<addr>.
	BaseURL string `yaml:"base_url"`
}

// WorkingCopyConfig configures the working copy pool.
type WorkingCopyConfig struct {
	PoolDir string `yaml:"pool_dir"` // defaults to <data_dir>/work
}

// CacheConfig configures the read command caches.
type CacheConfig struct {
	Size int           `yaml:"size"` // entries per command, 0 disables caching
	TTL  time.Duration `yaml:"ttl"`
}

// LFSConfig configures the large file filter.
type LFSConfig struct {
	Stripes int `yaml:"stripes"`
}

// HooksConfig configures hook dispatch.
type HooksConfig struct {
	ChallengeTTL time.Duration `yaml:"challenge_ttl"`
}

// MergeConfig configures merge commands.
type MergeConfig struct {
	// MessageTemplate renders the commit message when a merge is run
	// without one. Fields: .Repository, .Source, .Target, .Strategy,
	// .Author. Empty leaves the backend default.
	MessageTemplate string `yaml:"message_template"`
}

// DatabaseConfig configures the SQLite connection pool.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"` // milliseconds
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GitPath:      "git",
		HgPath:       "hg",
		SvnPath:      "svn",
		SvnadminPath: "svnadmin",
		Server: ServerConfig{
			Addr: "127.0.0.1:8470",
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  10 * time.Minute,
		},
		LFS: LFSConfig{
			Stripes: 8,
		},
		Hooks: HooksConfig{
			ChallengeTTL: 30 * time.Minute,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5000,
		},
		Theme: styles.DefaultTheme,
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://" + c.Server.Addr
	}
	if c.WorkingCopies.PoolDir == "" && c.DataDir != "" {
		c.WorkingCopies.PoolDir = filepath.Join(c.DataDir, "work")
	}
	if c.LFS.Stripes == 0 {
		c.LFS.Stripes = defaults.LFS.Stripes
	}
	if c.Hooks.ChallengeTTL == 0 {
		c.Hooks.ChallengeTTL = defaults.Hooks.ChallengeTTL
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
	if c.Theme == "" {
		c.Theme = defaults.Theme
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	for field, path := range map[string]string{
		"git_path":      c.GitPath,
		"hg_path":       c.HgPath,
		"svn_path":      c.SvnPath,
		"svnadmin_path": c.SvnadminPath,
	} {
		if path == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
	}

	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative")
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}

	if c.LFS.Stripes < 1 {
		return fmt.Errorf("lfs.stripes must be at least 1")
	}

	if c.Hooks.ChallengeTTL < time.Second {
		return fmt.Errorf("hooks.challenge_ttl must be at least 1s")
	}

	if c.Merge.MessageTemplate != "" {
		if err := tmpl.Check(c.Merge.MessageTemplate); err != nil {
			return fmt.Errorf("merge.message_template: %w", err)
		}
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}

	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative")
	}

	if _, ok := styles.GetPalette(c.Theme); !ok {
		return fmt.Errorf("unknown theme %q (available: %s)", c.Theme, strings.Join(styles.ThemeNames(), ", "))
	}

	return nil
}

// RepositoriesDir returns the directory holding all repositories of record.
func (c *Config) RepositoriesDir() string {
	return filepath.Join(c.DataDir, "repositories")
}

// RepositoryDir returns the native repository directory of one repository.
func (c *Config) RepositoryDir(id string) string {
	return filepath.Join(c.RepositoriesDir(), id, "data")
}

// LFSDir returns the large file object store of one repository.
func (c *Config) LFSDir(id string) string {
	return filepath.Join(c.RepositoriesDir(), id, "lfs")
}

// PoolDir returns the working copy pool root for a backend type.
func (c *Config) PoolDir(backend string) string {
	return filepath.Join(c.WorkingCopies.PoolDir, backend)
}

// HookURL returns the callback base URL for external hook processes.
func (c *Config) HookURL() string {
	return c.Server.BaseURL + "/hook"
}
