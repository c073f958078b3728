package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/colonyops/scmd/internal/core/doctor"
	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/colonyops/scmd/internal/scmd"
	"github.com/urfave/cli/v3"
)

type DoctorCmd struct {
	flags   *Flags
	format  string
	autofix bool
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your scmd setup",
		UsageText:   "scmd doctor [options]",
		Description: "Runs diagnostic checks on version control tools, repository storage, and working copy pools.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "autofix",
				Usage:       "automatically fix issues (e.g., remove stale working copies)",
				Destination: &cmd.autofix,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.App(ctx)
	if err != nil {
		return err
	}
	checks, err := doctorChecks(ctx, app, cmd.autofix)
	if err != nil {
		return err
	}
	results := doctor.RunAll(ctx, checks)

	if cmd.format == "json" {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(results)
}

// doctorChecks assembles the checks for the running installation.
func doctorChecks(ctx context.Context, app *scmd.App, fix bool) ([]doctor.Check, error) {
	cfg := app.Config
	repos, err := app.Repositories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	return []doctor.Check{
		doctor.NewToolsCheck(
			doctor.Tool{Label: "git", Path: cfg.GitPath, Purpose: "merges and bundles", Required: true},
			doctor.Tool{Label: "hg", Path: cfg.HgPath, Purpose: "hg repositories"},
			doctor.Tool{Label: "svn", Path: cfg.SvnPath, Purpose: "svn repositories"},
			doctor.Tool{Label: "svnadmin", Path: cfg.SvnadminPath, Purpose: "creating and dumping svn repositories"},
		),
		doctor.NewRepositoriesCheck(repos, cfg.RepositoryDir),
		doctor.NewPoolCheck(app.PoolDirs(), fix),
		doctor.NewBackendsCheck(app.SupportedCommands()),
	}, nil
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	passed, warned, failed := doctor.Summary(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary summaryJSON     `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: failed == 0,
		Summary: summaryJSON{Passed: passed, Warned: warned, Failed: failed},
		Checks:  results,
	}

	if err := writeJSON(c, out); err != nil {
		return err
	}
	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

type summaryJSON struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

func (cmd *DoctorCmd) outputText(results []doctor.Result) error {
	w := os.Stderr
	divider := styles.TextMutedStyle.Render(strings.Repeat("─", 40))

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.TextPrimaryBoldStyle.Render("scmd doctor"))
	_, _ = fmt.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w)

	for _, result := range results {
		_, _ = fmt.Fprintln(w, styles.TextForegroundBoldStyle.Render(result.Name))

		for _, item := range result.Items {
			var detail string
			if item.Detail != "" {
				detail = " " + styles.TextMutedStyle.Render(item.Detail)
			}

			var icon string
			switch item.Status {
			case doctor.StatusPass:
				icon = styles.TextSuccessStyle.Render("✔")
			case doctor.StatusWarn:
				icon = styles.TextWarningStyle.Render("●")
			case doctor.StatusFail:
				icon = styles.TextErrorStyle.Render("✘")
			}

			_, _ = fmt.Fprintf(w, "  %s %s%s\n", icon, item.Label, detail)
		}

		_, _ = fmt.Fprintln(w)
	}

	passed, warned, failed := doctor.Summary(results)
	summary := fmt.Sprintf("%s  %s  %s",
		styles.TextSuccessStyle.Render(fmt.Sprintf("%d passed", passed)),
		styles.TextWarningStyle.Render(fmt.Sprintf("%d warnings", warned)),
		styles.TextErrorStyle.Render(fmt.Sprintf("%d failed", failed)),
	)
	_, _ = fmt.Fprintln(w, summary)

	if !cmd.autofix {
		if fixable := doctor.CountFixable(results); fixable > 0 {
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintln(w, styles.TextMutedStyle.Render(fmt.Sprintf("Run 'scmd doctor --autofix' to fix %d issue(s)", fixable)))
		}
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}

	return nil
}
