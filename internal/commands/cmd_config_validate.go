package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/colonyops/scmd/internal/core/config"
	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/urfave/cli/v3"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "scmd config validate [options]",
				Description: "Validates the configuration file, checking tool executables, directories, and the hook callback URL.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type configValidation struct {
	Valid    bool                       `json:"valid"`
	Error    string                     `json:"error,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigValidateCmd) run(_ context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	result := configValidation{Valid: true, Warnings: cfg.Warnings()}
	if err := cfg.ValidateDeep(cmd.flags.ConfigPath); err != nil {
		result.Valid = false
		result.Error = err.Error()
	}

	if cmd.format == "json" {
		if err := writeJSON(c, result); err != nil {
			return err
		}
	} else {
		cmd.outputText(result)
	}

	if !result.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *ConfigValidateCmd) outputText(result configValidation) {
	w := os.Stderr

	for _, warn := range result.Warnings {
		_, _ = fmt.Fprintf(w, "%s %s: %s\n", styles.TextWarningStyle.Render("●"), warn.Category, warn.Message)
		if warn.Item != "" {
			_, _ = fmt.Fprintf(w, "  Item: %s\n", warn.Item)
		}
	}

	if result.Valid {
		_, _ = fmt.Fprintln(w, styles.TextSuccessStyle.Render("✔ Configuration is valid"))
		return
	}
	_, _ = fmt.Fprintln(w, styles.TextErrorStyle.Render("✘ Configuration is invalid"))
	_, _ = fmt.Fprintf(w, "  %s\n", result.Error)
}
