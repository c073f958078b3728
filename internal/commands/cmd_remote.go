package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/scmd"
	"github.com/urfave/cli/v3"
)

type RemoteCmd struct {
	flags *Flags

	branch  string
	force   bool
	jsonOut bool
}

// NewRemoteCmd creates the incoming, outgoing, push and pull commands
func NewRemoteCmd(flags *Flags) *RemoteCmd {
	return &RemoteCmd{flags: flags}
}

// Register adds the incoming, outgoing, push and pull commands to the application
func (cmd *RemoteCmd) Register(app *cli.Command) *cli.Command {
	branch := &cli.StringFlag{Name: "branch", Aliases: []string{"b"}, Usage: "limit to a branch", Destination: &cmd.branch}
	jsonOut := &cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOut}
	remoteHelp := `<remote> is a URL, a local path, or another managed repository given as
namespace/name or id.`

	app.Commands = append(app.Commands,
		&cli.Command{
			Name:        "incoming",
			Usage:       "List changesets the remote has that the repository lacks",
			UsageText:   "scmd incoming [options] <repository> <remote>",
			Description: remoteHelp,
			Flags:       []cli.Flag{branch, jsonOut},
			Action:      cmd.changesets(false),
		},
		&cli.Command{
			Name:        "outgoing",
			Usage:       "List changesets the repository has that the remote lacks",
			UsageText:   "scmd outgoing [options] <repository> <remote>",
			Description: remoteHelp,
			Flags:       []cli.Flag{branch, jsonOut},
			Action:      cmd.changesets(true),
		},
		&cli.Command{
			Name:        "push",
			Usage:       "Push changesets to a remote",
			UsageText:   "scmd push [options] <repository> <remote>",
			Description: remoteHelp,
			Flags: []cli.Flag{
				branch,
				jsonOut,
				&cli.BoolFlag{Name: "force", Usage: "overwrite diverged remote history", Destination: &cmd.force},
			},
			Action: cmd.push,
		},
		&cli.Command{
			Name:        "pull",
			Usage:       "Pull changesets from a remote",
			UsageText:   "scmd pull [options] <repository> <remote>",
			Description: remoteHelp,
			Flags:       []cli.Flag{branch, jsonOut},
			Action:      cmd.pull,
		},
	)

	return app
}

// remoteURL resolves a managed repository reference to its storage
// directory and passes anything else through.
func remoteURL(ctx context.Context, app *scmd.App, arg string) (string, error) {
	if strings.Contains(arg, "://") {
		return arg, nil
	}
	repo, err := app.Repositories.Resolve(ctx, arg)
	switch {
	case err == nil:
		return app.Config.RepositoryDir(repo.ID), nil
	case errors.Is(err, scm.ErrNotFound):
		return arg, nil
	default:
		return "", err
	}
}

func (cmd *RemoteCmd) changesets(outgoing bool) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		ref, err := repositoryArg(c)
		if err != nil {
			return err
		}
		args, err := requireArgs(c, 1, "remote")
		if err != nil {
			return err
		}
		app, svc, err := openService(ctx, cmd.flags, ref)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		url, err := remoteURL(ctx, app, args[0])
		if err != nil {
			return err
		}

		var page scm.ChangesetPage
		if outgoing {
			b, err := svc.Outgoing()
			if err != nil {
				return err
			}
			page, err = b.Branch(cmd.branch).Run(ctx, url)
			if err != nil {
				return err
			}
		} else {
			b, err := svc.Incoming()
			if err != nil {
				return err
			}
			page, err = b.Branch(cmd.branch).Run(ctx, url)
			if err != nil {
				return err
			}
		}

		if cmd.jsonOut {
			return writeJSON(c, page)
		}
		w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
		for _, cs := range page.Changesets {
			summary, _, _ := strings.Cut(cs.Description, "\n")
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", shortID(cs.ID), cs.Author.Name, summary)
		}
		return w.Flush()
	}
}

func (cmd *RemoteCmd) push(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	args, err := requireArgs(c, 1, "remote")
	if err != nil {
		return err
	}
	app, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	url, err := remoteURL(ctx, app, args[0])
	if err != nil {
		return err
	}
	b, err := svc.Push()
	if err != nil {
		return err
	}
	b.Branch(cmd.branch)
	if cmd.force {
		b.Force()
	}
	res, err := b.Run(ctx, url)
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		return writeJSON(c, res)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "pushed %d changeset(s)\n", res.Changesets)
	return nil
}

func (cmd *RemoteCmd) pull(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	args, err := requireArgs(c, 1, "remote")
	if err != nil {
		return err
	}
	app, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	url, err := remoteURL(ctx, app, args[0])
	if err != nil {
		return err
	}

	stop, err := serveHooks(ctx, app, svc.Repository())
	if err != nil {
		return err
	}
	defer stop()

	b, err := svc.Pull()
	if err != nil {
		return err
	}
	res, err := b.Branch(cmd.branch).Run(ctx, url)
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		return writeJSON(c, res)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "pulled %d changeset(s)\n", res.Changesets)
	return nil
}
