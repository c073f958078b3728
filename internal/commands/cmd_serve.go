package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colonyops/scmd/internal/core/activity"
	"github.com/colonyops/scmd/internal/core/config"
	"github.com/colonyops/scmd/internal/core/eventbus"
	"github.com/colonyops/scmd/internal/profiler"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

type ServeCmd struct {
	flags *Flags

	addr          string
	sweepInterval time.Duration
	noWatch       bool
	pprofAddr     string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the hook callback endpoint",
		UsageText: "scmd serve [options]",
		Description: `Serves the hook endpoint that hg hook processes call back to, sweeps
expired activity records and reloads the configuration file on change.
Runs until interrupted.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (defaults to server.addr)",
				Destination: &cmd.addr,
			},
			&cli.DurationFlag{
				Name:        "sweep-interval",
				Usage:       "how often expired records are removed",
				Value:       5 * time.Minute,
				Destination: &cmd.sweepInterval,
			},
			&cli.BoolFlag{
				Name:        "no-watch",
				Usage:       "do not reload the configuration file on change",
				Destination: &cmd.noWatch,
			},
			&cli.StringFlag{
				Name:        "pprof",
				Usage:       "serve net/http/pprof on this address (e.g. 127.0.0.1:6060)",
				Sources:     cli.EnvVars("SCMD_PPROF"),
				Destination: &cmd.pprofAddr,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	app, err := cmd.flags.App(ctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cmd.addr
	baseURL := app.Config.Server.BaseURL
	if addr == "" {
		addr = app.Config.Server.Addr
	} else if addr != app.Config.Server.Addr {
		baseURL = ""
	}

	errCh, err := app.ListenHooks(ctx, addr, baseURL)
	if err != nil {
		return err
	}
	log.Info().Str("hook_url", app.HookURL()).Msg("accepting hook callbacks")

	go activity.Sweep(ctx, app.KV, cmd.sweepInterval)

	if cmd.pprofAddr != "" {
		if err := profiler.New(cmd.pprofAddr, log.Logger).Start(ctx); err != nil {
			stop()
			<-errCh
			return err
		}
	}

	if !cmd.noWatch {
		if _, err := os.Stat(cmd.flags.ConfigPath); err == nil {
			w, err := config.Watch(ctx, cmd.flags.ConfigPath, cmd.flags.DataDir, func(cfg *config.Config, err error) {
				if err != nil {
					log.Error().Err(err).Msg("config reload failed")
					return
				}
				app.Bus.PublishConfigReloaded(eventbus.ConfigReloadedPayload{Config: cfg})
			})
			if err != nil {
				log.Warn().Err(err).Msg("config watcher disabled")
			} else {
				defer w.Wait()
			}
		}
	}

	err = <-errCh
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("hook endpoint: %w", err)
	}
	log.Info().Msg("hook endpoint stopped")
	return nil
}
