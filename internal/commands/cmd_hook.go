package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/colonyops/scmd/internal/backends/hg"
	"github.com/colonyops/scmd/internal/core/hook"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

type HookCmd struct {
	flags *Flags

	typ     string
	timeout time.Duration
}

// NewHookCmd creates a new hook command
func NewHookCmd(flags *Flags) *HookCmd {
	return &HookCmd{flags: flags}
}

// Register adds the hook command to the application
func (cmd *HookCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "hook",
		Usage:  "Hook callbacks invoked by version control tools",
		Hidden: true,
		Commands: []*cli.Command{
			{
				Name:      "hg",
				Usage:     "Forward an hg changegroup hook to the hook endpoint",
				UsageText: "scmd hook hg --type <pretxnchangegroup|changegroup>",
				Description: `Installed into the hgrc of every hg repository. Reads the callback
address, challenge and token from the environment the server set up and
relays the endpoint's messages to the pushing client.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "type",
						Usage:       "hg hook name",
						Required:    true,
						Destination: &cmd.typ,
					},
					&cli.DurationFlag{
						Name:        "timeout",
						Usage:       "callback timeout",
						Value:       5 * time.Minute,
						Destination: &cmd.timeout,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

func (cmd *HookCmd) run(ctx context.Context, _ *cli.Command) error {
	client := &http.Client{Timeout: cmd.timeout}
	if err := callHook(ctx, client, os.Getenv, cmd.typ, os.Stderr); err != nil {
		if !errors.Is(err, errHookRejected) {
			_, _ = fmt.Fprintf(os.Stderr, "scmd: %s\n", err)
		}
		return cli.Exit("", 1)
	}
	return nil
}

var errHookRejected = errors.New("hook rejected")

// callHook posts one hook invocation to the endpoint named by the
// environment. Messages of a failed dispatch are copied to stderr. Without
// a callback address the hook runs outside scmd and passes.
func callHook(ctx context.Context, client *http.Client, getenv func(string) string, typ string, stderr io.Writer) error {
	if _, err := hook.ParseType(typ); err != nil {
		return err
	}

	endpoint := getenv(hg.EnvHookURL)
	if endpoint == "" {
		log.Debug().Str("type", typ).Msg("no hook endpoint, skipping")
		return nil
	}

	q := url.Values{}
	q.Set("challenge", getenv(hg.EnvChallenge))
	q.Set("token", getenv(hg.EnvToken))
	q.Set("node", getenv("HG_NODE"))
	q.Set("type", typ)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build hook request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call hook endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return nil
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			_, _ = fmt.Fprintln(stderr, line)
		}
	}
	if resp.StatusCode == http.StatusConflict {
		return errHookRejected
	}
	return fmt.Errorf("hook endpoint returned %s", resp.Status)
}
