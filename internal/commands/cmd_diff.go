package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

type DiffCmd struct {
	flags *Flags

	revision string
	ancestor string
	path     string
	color    string
	jsonOut  bool
}

// NewDiffCmd creates the diff and modifications commands
func NewDiffCmd(flags *Flags) *DiffCmd {
	return &DiffCmd{flags: flags}
}

// Register adds the diff and modifications commands to the application
func (cmd *DiffCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "diff",
			Usage:     "Show the git-format diff of a changeset",
			UsageText: "scmd diff [options] <repository>",
			Description: `Prints the diff of --revision against its first parent, or against
--ancestor when given.`,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "revision", Aliases: []string{"r"}, Usage: "revision to diff", Destination: &cmd.revision},
				&cli.StringFlag{Name: "ancestor", Usage: "diff against this revision instead of the parent", Destination: &cmd.ancestor},
				&cli.StringFlag{Name: "path", Usage: "limit the diff to a path", Destination: &cmd.path},
				&cli.StringFlag{Name: "color", Usage: "colorize output (auto, always, never)", Value: "auto", Destination: &cmd.color},
			},
			Action: cmd.diff,
		},
		&cli.Command{
			Name:      "modifications",
			Aliases:   []string{"mods"},
			Usage:     "List the paths a changeset touched",
			UsageText: "scmd modifications [options] <repository>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "revision", Aliases: []string{"r"}, Usage: "revision to inspect", Destination: &cmd.revision},
				&cli.StringFlag{Name: "since", Usage: "list changes since this revision", Destination: &cmd.ancestor},
				&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOut},
			},
			Action: cmd.modifications,
		},
	)

	return app
}

func (cmd *DiffCmd) diff(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	_, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	b, err := svc.Diff()
	if err != nil {
		return err
	}
	b.Revision(cmd.revision).Path(cmd.path)
	if cmd.ancestor != "" {
		b.Ancestor(cmd.ancestor)
	}

	w := c.Root().Writer
	if !cmd.colorize(w) {
		return b.Write(ctx, w)
	}
	out, err := b.String(ctx)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, colorDiff(out))
	return err
}

func (cmd *DiffCmd) colorize(w io.Writer) bool {
	switch cmd.color {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// colorDiff styles added, removed and hunk header lines of a unified diff.
func colorDiff(diff string) string {
	lines := strings.SplitAfter(diff, "\n")
	var b strings.Builder
	for _, line := range lines {
		text := strings.TrimSuffix(line, "\n")
		nl := len(text) != len(line)
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"):
			text = styles.TextForegroundBoldStyle.Render(text)
		case strings.HasPrefix(text, "+"):
			text = styles.DiffAddedStyle.Render(text)
		case strings.HasPrefix(text, "-"):
			text = styles.DiffRemovedStyle.Render(text)
		case strings.HasPrefix(text, "@@"):
			text = styles.DiffHunkStyle.Render(text)
		}
		b.WriteString(text)
		if nl {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (cmd *DiffCmd) modifications(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	_, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	b, err := svc.Modifications()
	if err != nil {
		return err
	}
	b.Revision(cmd.revision)
	if cmd.ancestor != "" {
		b.Since(cmd.ancestor)
	}
	mods, err := b.Modifications(ctx)
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		return writeJSON(c, mods)
	}

	w := c.Root().Writer
	for _, p := range mods.Added {
		_, _ = fmt.Fprintf(w, "A %s\n", p)
	}
	for _, p := range mods.Modified {
		_, _ = fmt.Fprintf(w, "M %s\n", p)
	}
	for _, p := range mods.Removed {
		_, _ = fmt.Fprintf(w, "D %s\n", p)
	}
	for _, r := range mods.Renamed {
		_, _ = fmt.Fprintf(w, "R %s -> %s\n", r.From, r.To)
	}
	return nil
}
