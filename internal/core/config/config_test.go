package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load("", dataDir)
	require.NoError(t, err)

	assert.Equal(t, "git", cfg.GitPath)
	assert.Equal(t, "hg", cfg.HgPath)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "work"), cfg.WorkingCopies.PoolDir)
	assert.Equal(t, "http://127.0.0.1:8470", cfg.Server.BaseURL)
	assert.Equal(t, 8, cfg.LFS.Stripes)
	assert.Equal(t, 256, cfg.Cache.Size)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().GitPath, cfg.GitPath)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
git_path: /usr/local/bin/git
server:
  addr: 0.0.0.0:9000
cache:
  size: 10
  ttl: 30s
lfs:
  stripes: 16
hooks:
  challenge_ttl: 5m
working_copies:
  pool_dir: /var/tmp/scmd
`), 0o644))

	cfg, err := Load(path, dir)
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/git", cfg.GitPath)
	assert.Equal(t, "svn", cfg.SvnPath, "unset fields keep defaults")
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "http://0.0.0.0:9000", cfg.Server.BaseURL)
	assert.Equal(t, 10, cfg.Cache.Size)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 16, cfg.LFS.Stripes)
	assert.Equal(t, 5*time.Minute, cfg.Hooks.ChallengeTTL)
	assert.Equal(t, "/var/tmp/scmd", cfg.WorkingCopies.PoolDir)
	assert.Equal(t, dir, cfg.DataDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("git_path: [unterminated"), 0o644))

	_, err := Load(path, t.TempDir())
	assert.ErrorContains(t, err, "parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty git path", func(c *Config) { c.GitPath = "" }, "git_path cannot be empty"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data directory"},
		{"negative cache", func(c *Config) { c.Cache.Size = -1 }, "cache.size"},
		{"zero stripes", func(c *Config) { c.LFS.Stripes = 0 }, "lfs.stripes"},
		{"short challenge ttl", func(c *Config) { c.Hooks.ChallengeTTL = time.Millisecond }, "hooks.challenge_ttl"},
		{"unknown theme", func(c *Config) { c.Theme = "solarized" }, "unknown theme"},
		{"merge template", func(c *Config) { c.Merge.MessageTemplate = "Merge {{ .Source }} into {{ .Target }}" }, ""},
		{"broken merge template", func(c *Config) { c.Merge.MessageTemplate = "Merge {{ .Source" }, "merge.message_template"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	cfg.WorkingCopies.PoolDir = "/pool"

	assert.Equal(t, "/data/repositories/r1/data", cfg.RepositoryDir("r1"))
	assert.Equal(t, "/data/repositories/r1/lfs", cfg.LFSDir("r1"))
	assert.Equal(t, "/pool/git", cfg.PoolDir("git"))
}
