package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/urfave/cli/v3"
)

type RefsCmd struct {
	flags *Flags

	from    string
	noCache bool
	jsonOut bool
}

// NewRefsCmd creates the branches, tags and branch commands
func NewRefsCmd(flags *Flags) *RefsCmd {
	return &RefsCmd{flags: flags}
}

// Register adds the branches, tags and branch commands to the application
func (cmd *RefsCmd) Register(app *cli.Command) *cli.Command {
	listFlags := []cli.Flag{
		&cli.BoolFlag{Name: "no-cache", Usage: "bypass the command cache", Destination: &cmd.noCache},
		&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOut},
	}

	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "branches",
			Usage:     "List branches",
			UsageText: "scmd branches [options] <repository>",
			Flags:     listFlags,
			Action:    cmd.branches,
		},
		&cli.Command{
			Name:      "tags",
			Usage:     "List tags",
			UsageText: "scmd tags [options] <repository>",
			Flags:     listFlags,
			Action:    cmd.tags,
		},
		&cli.Command{
			Name:  "branch",
			Usage: "Create or delete branches",
			Commands: []*cli.Command{
				{
					Name:      "create",
					Usage:     "Create a branch",
					UsageText: "scmd branch create [--from <branch>] <repository> <name>",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "from", Usage: "parent branch (defaults to the default branch)", Destination: &cmd.from},
						&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOut},
					},
					Action: cmd.create,
				},
				{
					Name:      "delete",
					Aliases:   []string{"rm"},
					Usage:     "Delete a branch",
					UsageText: "scmd branch delete <repository> <name>",
					Action:    cmd.delete,
				},
			},
		},
	)

	return app
}

func (cmd *RefsCmd) branches(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	_, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	b, err := svc.Branches()
	if err != nil {
		return err
	}
	if cmd.noCache {
		b.DisableCache()
	}
	branches, err := b.Branches(ctx)
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		return writeJSON(c, branches)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	for _, br := range branches {
		name := br.Name
		if br.DefaultBranch {
			name = styles.TextPrimaryBoldStyle.Render("* " + name)
		} else {
			name = "  " + name
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, shortID(br.Revision), br.LastCommit.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (cmd *RefsCmd) tags(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	_, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	b, err := svc.Tags()
	if err != nil {
		return err
	}
	if cmd.noCache {
		b.DisableCache()
	}
	tags, err := b.Tags(ctx)
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		return writeJSON(c, tags)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	for _, t := range tags {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", t.Name, shortID(t.Revision))
	}
	return w.Flush()
}

func (cmd *RefsCmd) create(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	args, err := requireArgs(c, 1, "name")
	if err != nil {
		return err
	}
	app, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	stop, err := serveHooks(ctx, app, svc.Repository())
	if err != nil {
		return err
	}
	defer stop()

	b, err := svc.Branch()
	if err != nil {
		return err
	}
	branch, err := b.From(cmd.from).Create(ctx, args[0])
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		return writeJSON(c, branch)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "created branch %s at %s\n", branch.Name, shortID(branch.Revision))
	return nil
}

func (cmd *RefsCmd) delete(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	args, err := requireArgs(c, 1, "name")
	if err != nil {
		return err
	}
	app, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	stop, err := serveHooks(ctx, app, svc.Repository())
	if err != nil {
		return err
	}
	defer stop()

	b, err := svc.Branch()
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, args[0]); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "deleted branch %s\n", args[0])
	return nil
}
