package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/urfave/cli/v3"
)

type BlameCmd struct {
	flags *Flags

	revision string
	noCache  bool
	jsonOut  bool
}

// NewBlameCmd creates a new blame command
func NewBlameCmd(flags *Flags) *BlameCmd {
	return &BlameCmd{flags: flags}
}

// Register adds the blame command to the application
func (cmd *BlameCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "blame",
		Aliases:   []string{"annotate"},
		Usage:     "Show the changeset that last touched each line of a file",
		UsageText: "scmd blame [options] <repository> <path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "revision", Aliases: []string{"r"}, Usage: "revision to annotate", Destination: &cmd.revision},
			&cli.BoolFlag{Name: "no-cache", Usage: "bypass the command cache", Destination: &cmd.noCache},
			&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOut},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *BlameCmd) run(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	args, err := requireArgs(c, 1, "path")
	if err != nil {
		return err
	}
	_, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	b, err := svc.Blame()
	if err != nil {
		return err
	}
	b.Revision(cmd.revision)
	if cmd.noCache {
		b.DisableCache()
	}
	result, err := b.Annotate(ctx, args[0])
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		return writeJSON(c, result)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 1, ' ', 0)
	for _, l := range result.Lines {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d)\t%s\n",
			styles.TextPrimaryBoldStyle.Render(shortID(l.Revision)),
			l.Author.Name,
			l.When.Format("2006-01-02"),
			l.LineNumber,
			l.Code,
		)
	}
	return w.Flush()
}
