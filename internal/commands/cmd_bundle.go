package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

type BundleCmd struct {
	flags *Flags

	output  string
	input   string
	jsonOut bool
}

// NewBundleCmd creates the bundle and unbundle commands
func NewBundleCmd(flags *Flags) *BundleCmd {
	return &BundleCmd{flags: flags}
}

// Register adds the bundle and unbundle commands to the application
func (cmd *BundleCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "bundle",
			Usage:     "Dump the full history of a repository",
			UsageText: "scmd bundle [-o file] <repository>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to file instead of stdout", Destination: &cmd.output},
			},
			Action: cmd.bundle,
		},
		&cli.Command{
			Name:      "unbundle",
			Usage:     "Restore a dump into an empty repository",
			UsageText: "scmd unbundle [-i file] <repository>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "read from file instead of stdin", Destination: &cmd.input},
				&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOut},
			},
			Action: cmd.unbundle,
		},
	)

	return app
}

func (cmd *BundleCmd) bundle(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	_, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	b, err := svc.Bundle()
	if err != nil {
		return err
	}

	var w io.Writer = c.Root().Writer
	if cmd.output != "" {
		f, err := os.Create(cmd.output)
		if err != nil {
			return fmt.Errorf("create bundle file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	res, err := b.Write(ctx, w)
	if err != nil {
		if cmd.output != "" {
			_ = os.Remove(cmd.output)
		}
		return err
	}
	_, _ = fmt.Fprintf(os.Stderr, "wrote %d bytes\n", res.Bytes)
	return nil
}

func (cmd *BundleCmd) unbundle(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return err
	}
	app, svc, err := openService(ctx, cmd.flags, ref)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	var r io.Reader = os.Stdin
	if cmd.input != "" {
		f, err := os.Open(cmd.input)
		if err != nil {
			return fmt.Errorf("open bundle file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	stop, err := serveHooks(ctx, app, svc.Repository())
	if err != nil {
		return err
	}
	defer stop()

	b, err := svc.Unbundle()
	if err != nil {
		return err
	}
	res, err := b.Read(ctx, r)
	if err != nil {
		return err
	}
	if cmd.jsonOut {
		return writeJSON(c, res)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "restored %d changeset(s)\n", res.Changesets)
	return nil
}
