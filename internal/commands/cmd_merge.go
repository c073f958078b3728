package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/colonyops/scmd/pkg/tmpl"
	"github.com/urfave/cli/v3"
)

// mergeMessageData is the data passed to merge.message_template.
type mergeMessageData struct {
	Repository string
	Source     string
	Target     string
	Strategy   string
	Author     string
}

// mergeMessage renders the configured template. An empty template yields
// an empty message so the backend default applies.
func mergeMessage(template string, data mergeMessageData) (string, error) {
	if template == "" {
		return "", nil
	}
	msg, err := tmpl.Render(template, data)
	if err != nil {
		return "", fmt.Errorf("merge.message_template: %w", err)
	}
	return strings.TrimSpace(msg), nil
}

type MergeCmd struct {
	flags *Flags

	strategy string
	message  string
	author   string
	dryRun   bool
	jsonOut  bool
}

// NewMergeCmd creates a new merge command
func NewMergeCmd(flags *Flags) *MergeCmd {
	return &MergeCmd{flags: flags}
}

// Register adds the merge command to the application
func (cmd *MergeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "merge",
		Usage:     "Merge a source branch into a target branch",
		UsageText: "scmd merge [options] <repository> <source> <target>",
		Description: `Merges source into target. Conflicts are reported with a diff per path and
leave the target unchanged; the command exits 1 in that case.

Strategies:
  merge-commit   always record a merge commit
  fast-forward   fast-forward when target is an ancestor of source
  squash         fold all source changes into one commit`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "strategy", Aliases: []string{"s"}, Usage: "merge-commit, fast-forward or squash", Value: "merge-commit", Destination: &cmd.strategy},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "commit message", Destination: &cmd.message},
			&cli.StringFlag{Name: "author", Usage: `author as "Name <email>"`, Destination: &cmd.author},
			&cli.BoolFlag{Name: "dry-run", Usage: "only report whether the merge would succeed", Destination: &cmd.dryRun},
			&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOut},
		},
		Action: cmd.run,
	})

	return app
}

// parseStrategy maps the flag value onto a merge strategy.
func parseStrategy(s string) (scm.MergeStrategy, error) {
	switch strings.ToLower(s) {
	case "merge-commit", "merge", strings.ToLower(string(scm.MergeCommit)):
		return scm.MergeCommit, nil
	case "fast-forward", "ff", strings.ToLower(string(scm.FastForwardIfPossible)):
		return scm.FastForwardIfPossible, nil
	case "squash":
		return scm.Squash, nil
	}
	return "", fmt.Errorf("unknown merge strategy %q", s)
}

func (cmd *MergeCmd) run(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	args, err := requireArgs(c, 2, "source", "target")
	if err != nil {
		return err
	}
	strategy, err := parseStrategy(cmd.strategy)
	if err != nil {
		return err
	}
	author := cmd.author
	if author == "" {
		author = defaultAuthor()
	}
	person, err := parsePerson(author)
	if err != nil {
		return err
	}

	app, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	b, err := svc.Merge()
	if err != nil {
		return err
	}
	message := cmd.message
	if message == "" {
		repo := svc.Repository()
		message, err = mergeMessage(app.Config.Merge.MessageTemplate, mergeMessageData{
			Repository: repo.Namespace + "/" + repo.Name,
			Source:     args[0],
			Target:     args[1],
			Strategy:   string(strategy),
			Author:     person.Name,
		})
		if err != nil {
			return err
		}
	}
	b.Source(args[0]).Target(args[1]).Strategy(strategy).Message(message).Author(person)

	if cmd.dryRun {
		res, err := b.DryRun(ctx)
		if err != nil {
			return err
		}
		if cmd.jsonOut {
			return writeJSON(c, res)
		}
		if res.Mergeable {
			_, _ = fmt.Fprintln(c.Root().Writer, styles.TextSuccessStyle.Render("mergeable"))
			return nil
		}
		_, _ = fmt.Fprintln(c.Root().Writer, styles.TextErrorStyle.Render("not mergeable"))
		return cli.Exit("", 1)
	}

	stop, err := serveHooks(ctx, app, svc.Repository())
	if err != nil {
		return err
	}
	defer stop()

	res, err := b.Execute(ctx)
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		if err := writeJSON(c, res); err != nil {
			return err
		}
		if !res.Success {
			return cli.Exit("", 1)
		}
		return nil
	}

	w := c.Root().Writer
	if res.Success {
		_, _ = fmt.Fprintf(w, "%s %s into %s at %s\n",
			styles.TextSuccessStyle.Render("merged"), args[0], args[1], shortID(res.Revision))
		return nil
	}

	_, _ = fmt.Fprintf(w, "%s %d conflict(s)\n", styles.TextErrorStyle.Render("merge failed:"), len(res.Conflicts))
	for _, conflict := range res.Conflicts {
		_, _ = fmt.Fprintf(w, "\n%s %s\n", styles.TextWarningStyle.Render(string(conflict.Type)), conflict.Path)
		if conflict.Diff != "" {
			_, _ = fmt.Fprint(w, colorDiff(conflict.Diff))
		}
	}
	return cli.Exit("", 1)
}
