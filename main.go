package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/scmd/internal/commands"
	"github.com/colonyops/scmd/internal/core/config"
	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/colonyops/scmd/internal/scmd"
	"github.com/colonyops/scmd/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var logCloser func()

	flags := &commands.Flags{}
	flags.Open = func(ctx context.Context) (*scmd.App, error) {
		database, err := scmd.OpenDatabase(flags.Config)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		app, err := scmd.New(flags.Config, database, scmd.Options{})
		if err != nil {
			_ = database.Close()
			return nil, err
		}
		return app, nil
	}

	app := &cli.Command{
		Name:      "scmd",
		Usage:     "Serve git, hg and svn repositories through one command model",
		UsageText: "scmd [global options] command [command options]",
		Description: `scmd stores git, Mercurial and Subversion repositories and runs the same
read and write commands against each of them: log, diff, blame, browse,
cat, branches, tags, modify, merge, push, pull and bundles.

Run 'scmd repo create --type git team/project' to create a repository.
Run 'scmd serve' to accept hook callbacks from hg pushes.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("SCMD_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/scmd.log)",
				Sources:     cli.EnvVars("SCMD_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("SCMD_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("SCMD_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; use explicit path or default to <datadir>/scmd.log
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "scmd.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			// Apply configured theme (validation ensures name is valid)
			palette, _ := styles.GetPalette(cfg.Theme)
			styles.SetTheme(palette)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if a := flags.Opened(); a != nil {
				if err := a.Close(); err != nil {
					log.Error().Err(err).Msg("failed to stop application")
				}
				if err := a.DB.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewServeCmd(flags).Register(app)
	app = commands.NewRepoCmd(flags).Register(app)
	app = commands.NewLogCmd(flags).Register(app)
	app = commands.NewDiffCmd(flags).Register(app)
	app = commands.NewBlameCmd(flags).Register(app)
	app = commands.NewBrowseCmd(flags).Register(app)
	app = commands.NewRefsCmd(flags).Register(app)
	app = commands.NewModifyCmd(flags).Register(app)
	app = commands.NewMergeCmd(flags).Register(app)
	app = commands.NewRemoteCmd(flags).Register(app)
	app = commands.NewBundleCmd(flags).Register(app)
	app = commands.NewDoctorCmd(flags).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)
	app = commands.NewHookCmd(flags).Register(app)

	commands.EnableCompletion(app, flags)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
