package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// RepositoryCompleter returns a ShellCompleteFunc that suggests repository
// names as the first positional completion. Set this as the ShellComplete
// field on any cli.Command that takes a repository argument.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func RepositoryCompleter(flags *Flags) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
			if args.Len() > 1 {
				return
			}
		}

		app, err := flags.App(ctx)
		if err != nil {
			return
		}
		repos, err := app.Repositories.List(ctx)
		if err != nil {
			return
		}

		w := cmd.Root().Writer
		for _, r := range repos {
			_, _ = fmt.Fprintln(w, r.NamespaceAndName())
		}
	}
}

// withRepositoryCompletion sets the repository completer on every leaf
// command below root that has no completer yet.
func withRepositoryCompletion(root *cli.Command, flags *Flags, skip ...string) {
	skipped := map[string]bool{}
	for _, s := range skip {
		skipped[s] = true
	}
	var walk func(cmds []*cli.Command)
	walk = func(cmds []*cli.Command) {
		for _, c := range cmds {
			if skipped[c.Name] {
				continue
			}
			if len(c.Commands) > 0 {
				walk(c.Commands)
				continue
			}
			if c.ShellComplete == nil {
				c.ShellComplete = RepositoryCompleter(flags)
			}
		}
	}
	walk(root.Commands)
}

// EnableCompletion wires shell completion for the registered commands.
func EnableCompletion(root *cli.Command, flags *Flags) {
	root.EnableShellCompletion = true
	withRepositoryCompletion(root, flags, "serve", "doctor", "config", "hook")
}
