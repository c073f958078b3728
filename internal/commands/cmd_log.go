package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/urfave/cli/v3"
)

type LogCmd struct {
	flags *Flags

	branch   string
	path     string
	ancestor string
	start    string
	end      string
	offset   int
	limit    int
	noCache  bool
	jsonOut  bool
	revision string
}

// NewLogCmd creates a new log command
func NewLogCmd(flags *Flags) *LogCmd {
	return &LogCmd{flags: flags}
}

// Register adds the log command to the application
func (cmd *LogCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "log",
		Usage:     "List changesets of a repository",
		UsageText: "scmd log [options] <repository>",
		Description: `Lists changesets newest first. --ancestor lists the changesets of the
branch that are not reachable from the ancestor revision. --revision shows
a single changeset.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "branch", Aliases: []string{"b"}, Usage: "branch to list", Destination: &cmd.branch},
			&cli.StringFlag{Name: "path", Usage: "only changesets touching path", Destination: &cmd.path},
			&cli.StringFlag{Name: "ancestor", Usage: "exclude changesets reachable from this revision", Destination: &cmd.ancestor},
			&cli.StringFlag{Name: "start", Usage: "newest changeset of the range", Destination: &cmd.start},
			&cli.StringFlag{Name: "end", Usage: "oldest changeset of the range", Destination: &cmd.end},
			&cli.IntFlag{Name: "offset", Usage: "changesets to skip", Destination: &cmd.offset},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "maximum changesets (0 for all)", Value: 20, Destination: &cmd.limit},
			&cli.StringFlag{Name: "revision", Aliases: []string{"r"}, Usage: "show a single changeset", Destination: &cmd.revision},
			&cli.BoolFlag{Name: "no-cache", Usage: "bypass the command cache", Destination: &cmd.noCache},
			&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOut},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LogCmd) run(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	_, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	b, err := svc.Log()
	if err != nil {
		return err
	}
	b.Branch(cmd.branch).Path(cmd.path).Page(cmd.offset, cmd.limit)
	if cmd.ancestor != "" {
		b.Ancestor(cmd.ancestor)
	}
	if cmd.start != "" || cmd.end != "" {
		b.Range(cmd.start, cmd.end)
	}
	if cmd.noCache {
		b.DisableCache()
	}

	if cmd.revision != "" {
		cs, err := b.Changeset(ctx, cmd.revision)
		if err != nil {
			return err
		}
		if cmd.jsonOut {
			return writeJSON(c, cs)
		}
		printChangeset(c, cs)
		return nil
	}

	page, err := b.Changesets(ctx)
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		return writeJSON(c, page)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	for _, cs := range page.Changesets {
		summary, _, _ := strings.Cut(cs.Description, "\n")
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			styles.TextPrimaryBoldStyle.Render(shortID(cs.ID)),
			cs.Date.Format("2006-01-02 15:04"),
			cs.Author.Name,
			summary,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.Root().Writer, styles.TextMutedStyle.Render(
		fmt.Sprintf("%d of %d changesets", len(page.Changesets), page.Total)))
	return nil
}

func printChangeset(c *cli.Command, cs scm.Changeset) {
	w := c.Root().Writer
	_, _ = fmt.Fprintln(w, styles.TextPrimaryBoldStyle.Render("changeset "+cs.ID))
	if len(cs.Parents) > 0 {
		_, _ = fmt.Fprintf(w, "Parents: %s\n", strings.Join(cs.Parents, " "))
	}
	if len(cs.Branches) > 0 {
		_, _ = fmt.Fprintf(w, "Branch:  %s\n", strings.Join(cs.Branches, ", "))
	}
	if len(cs.Tags) > 0 {
		_, _ = fmt.Fprintf(w, "Tags:    %s\n", strings.Join(cs.Tags, ", "))
	}
	_, _ = fmt.Fprintf(w, "Author:  %s\n", cs.Author)
	_, _ = fmt.Fprintf(w, "Date:    %s\n\n", cs.Date.Format("Mon Jan 2 15:04:05 2006 -0700"))
	for _, line := range strings.Split(strings.TrimRight(cs.Description, "\n"), "\n") {
		_, _ = fmt.Fprintf(w, "    %s\n", line)
	}
}
