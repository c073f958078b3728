package config

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// ValidateDeep performs comprehensive validation of the configuration including
// executables, directories and the callback URL. The configPath argument
// specifies the config file location to validate (empty string skips config file check).
// This calls Validate() first for basic structural validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		criterio.Run("server.base_url", c.Server.BaseURL, validateBaseURL),
	)
}

// Warnings returns non-fatal configuration issues. Missing hg or svn
// executables only disable those backends.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	for _, tool := range []struct{ field, path string }{
		{"hg_path", c.HgPath},
		{"svn_path", c.SvnPath},
		{"svnadmin_path", c.SvnadminPath},
	} {
		if err := executableExists(tool.path); err != nil {
			warnings = append(warnings, ValidationWarning{
				Category: "Backends",
				Item:     tool.field,
				Message:  err.Error(),
			})
		}
	}

	if c.Cache.Size == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Cache",
			Message:  "cache.size is 0, read commands are not cached",
		})
	}

	return warnings
}

// validateFileAccess checks config file, data directories, and git executable.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("git_path", c.GitPath, executableExists),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("working_copies.pool_dir", c.WorkingCopies.PoolDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// executableExists validates that the path resolves to an executable.
func executableExists(path string) error {
	if path == "" {
		return nil
	}
	if _, err := lookPath(path); err != nil {
		return fmt.Errorf("executable not found: %s", path)
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	return nil
}
