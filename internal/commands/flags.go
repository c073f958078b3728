package commands

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/colonyops/scmd/internal/core/config"
	"github.com/colonyops/scmd/internal/scmd"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// Open builds the application. Set in main; commands go through App.
	Open func(ctx context.Context) (*scmd.App, error)

	once sync.Once
	app  *scmd.App
	err  error
}

// App opens the application on first use. The hook client never calls it,
// so hg hook processes do not touch the database.
func (f *Flags) App(ctx context.Context) (*scmd.App, error) {
	f.once.Do(func() {
		f.app, f.err = f.Open(ctx)
	})
	return f.app, f.err
}

// Opened returns the application if App has built it.
func (f *Flags) Opened() *scmd.App {
	return f.app
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "scmd", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "scmd")
}

// DefaultLogFile returns the default log file path using the system's state directory.
// On macOS: ~/Library/Logs/scmd/scmd.log
// On Linux: $XDG_STATE_HOME/scmd/scmd.log (defaults to ~/.local/state/scmd/scmd.log)
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome != "" {
		return filepath.Join(stateHome, "scmd", "scmd.log")
	}

	home, _ := os.UserHomeDir()

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "scmd", "scmd.log")
	}

	return filepath.Join(home, ".local", "state", "scmd", "scmd.log")
}
