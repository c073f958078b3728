package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/colonyops/scmd/internal/core/activity"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/urfave/cli/v3"
)

type RepoCmd struct {
	flags *Flags

	typ     string
	jsonOut bool
}

// NewRepoCmd creates a new repo command
func NewRepoCmd(flags *Flags) *RepoCmd {
	return &RepoCmd{flags: flags}
}

// Register adds the repo command to the application
func (cmd *RepoCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "repo",
		Usage: "Manage repositories",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a repository",
				UsageText: "scmd repo create --type git <namespace>/<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "type",
						Aliases:     []string{"t"},
						Usage:       "repository type (git, hg, svn)",
						Value:       "git",
						Destination: &cmd.typ,
					},
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOut,
					},
				},
				Action: cmd.create,
			},
			{
				Name:      "ls",
				Aliases:   []string{"list"},
				Usage:     "List repositories",
				UsageText: "scmd repo ls [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON lines",
						Destination: &cmd.jsonOut,
					},
				},
				Action: cmd.list,
			},
			{
				Name:      "rm",
				Usage:     "Delete a repository and its storage",
				UsageText: "scmd repo rm <repository>",
				Action:    cmd.remove,
			},
			{
				Name:      "archive",
				Usage:     "Mark a repository read-only",
				UsageText: "scmd repo archive <repository>",
				Action:    cmd.archive(true),
			},
			{
				Name:      "unarchive",
				Usage:     "Make an archived repository writable again",
				UsageText: "scmd repo unarchive <repository>",
				Action:    cmd.archive(false),
			},
		},
	})

	return app
}

func (cmd *RepoCmd) create(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	namespace, name, ok := cutRef(ref)
	if !ok {
		return fmt.Errorf("repository must be given as <namespace>/<name>")
	}

	app, err := cmd.flags.App(ctx)
	if err != nil {
		return err
	}
	repo, err := app.Repositories.Create(ctx, namespace, name, cmd.typ)
	if err != nil {
		return err
	}

	if cmd.jsonOut {
		return writeJSON(c, repo)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "%s %s\n", styles.TextSuccessStyle.Render("created"), repo)
	return nil
}

type repoRow struct {
	scm.Repository
	LastActivity *activity.Entry `json:"lastActivity,omitempty"`
}

func (cmd *RepoCmd) list(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.App(ctx)
	if err != nil {
		return err
	}
	repos, err := app.Repositories.List(ctx)
	if err != nil {
		return err
	}

	rows := make([]repoRow, 0, len(repos))
	for _, r := range repos {
		row := repoRow{Repository: r}
		if e, ok, err := app.Activity.Last(ctx, r.ID); err == nil && ok {
			row.LastActivity = &e
		}
		rows = append(rows, row)
	}

	if cmd.jsonOut {
		for _, row := range rows {
			if err := writeJSONLine(c, row); err != nil {
				return err
			}
		}
		return nil
	}

	if len(rows) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "No repositories found")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REPOSITORY\tTYPE\tID\tSTATE\tLAST ACTIVITY")
	for _, row := range rows {
		state := "active"
		if row.Archived {
			state = "archived"
		}
		last := "-"
		if row.LastActivity != nil {
			last = fmt.Sprintf("%s %s", row.LastActivity.Operation, humanizeSince(row.LastActivity.At))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row.NamespaceAndName(), row.Type, row.ID, state, last)
	}
	return w.Flush()
}

func (cmd *RepoCmd) remove(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	app, err := cmd.flags.App(ctx)
	if err != nil {
		return err
	}
	repo, err := app.Repositories.Delete(ctx, ref)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "%s %s\n", styles.TextWarningStyle.Render("deleted"), repo)
	return nil
}

func (cmd *RepoCmd) archive(archived bool) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		ref, err := repositoryArg(c)
		if err != nil {
			return err
		}
		app, err := cmd.flags.App(ctx)
		if err != nil {
			return err
		}
		repo, err := app.Repositories.SetArchived(ctx, ref, archived)
		if err != nil {
			return err
		}
		verb := "archived"
		if !archived {
			verb = "unarchived"
		}
		_, _ = fmt.Fprintf(c.Root().Writer, "%s %s\n", verb, repo)
		return nil
	}
}

func cutRef(ref string) (namespace, name string, ok bool) {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '/' {
			return ref[:i], ref[i+1:], i > 0 && i < len(ref)-1
		}
	}
	return "", "", false
}

// humanizeSince renders the age of t coarsely, e.g. "5m ago".
func humanizeSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
