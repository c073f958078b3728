package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/styles"
	"github.com/urfave/cli/v3"
)

type BrowseCmd struct {
	flags *Flags

	revision  string
	recursive bool
	noCache   bool
	jsonOut   bool
}

// NewBrowseCmd creates the browse and cat commands
func NewBrowseCmd(flags *Flags) *BrowseCmd {
	return &BrowseCmd{flags: flags}
}

// Register adds the browse and cat commands to the application
func (cmd *BrowseCmd) Register(app *cli.Command) *cli.Command {
	revision := &cli.StringFlag{
		Name:        "revision",
		Aliases:     []string{"r"},
		Usage:       "revision, branch or tag (defaults to the default branch head)",
		Destination: &cmd.revision,
	}

	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "browse",
			Aliases:   []string{"tree"},
			Usage:     "List the files of a directory at a revision",
			UsageText: "scmd browse [options] <repository> [path]",
			Flags: []cli.Flag{
				revision,
				&cli.BoolFlag{Name: "recursive", Aliases: []string{"R"}, Usage: "descend into subdirectories", Destination: &cmd.recursive},
				&cli.BoolFlag{Name: "no-cache", Usage: "bypass the command cache", Destination: &cmd.noCache},
				&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOut},
			},
			Action: cmd.browse,
		},
		&cli.Command{
			Name:      "cat",
			Usage:     "Print the content of a file at a revision",
			UsageText: "scmd cat [options] <repository> <path>",
			Flags:     []cli.Flag{revision},
			Action:    cmd.cat,
		},
	)

	return app
}

func (cmd *BrowseCmd) browse(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	_, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	b, err := svc.Browse()
	if err != nil {
		return err
	}
	b.Revision(cmd.revision).Path(c.Args().Get(1))
	if cmd.recursive {
		b.Recursive()
	}
	if cmd.noCache {
		b.DisableCache()
	}

	result, err := b.Browse(ctx)
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		return writeJSON(c, result)
	}

	if result.Revision != "" {
		_, _ = fmt.Fprintln(c.Root().Writer, styles.TextMutedStyle.Render("revision "+result.Revision))
	}
	if result.File != nil {
		printTree(c.Root().Writer, result.File.Children, 0)
	}
	return nil
}

func printTree(w io.Writer, files []*scm.FileObject, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range files {
		if f.Directory {
			_, _ = fmt.Fprintf(w, "%s%s/\n", indent, styles.TextPrimaryBoldStyle.Render(f.Name))
			printTree(w, f.Children, depth+1)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s%s %s\n", indent, f.Name, styles.TextMutedStyle.Render(fmt.Sprintf("(%d bytes)", f.Length)))
	}
}

func (cmd *BrowseCmd) cat(ctx context.Context, c *cli.Command) error {
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

	b, err := svc.Cat()
	if err != nil {
		return err
	}
	return b.Revision(cmd.revision).Write(ctx, args[0], c.Root().Writer)
}
