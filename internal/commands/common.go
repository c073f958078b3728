package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/colonyops/scmd/internal/backends/hg"
	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/service"
	"github.com/colonyops/scmd/internal/scmd"
	"github.com/colonyops/scmd/pkg/iojson"
	"github.com/urfave/cli/v3"
)

// loopbackAddr is where one-shot commands serve hook callbacks.
const loopbackAddr = "127.0.0.1:0"

// openService resolves ref ("namespace/name" or id) and opens its command
// facade. The caller closes the service.
func openService(ctx context.Context, flags *Flags, ref string) (*scmd.App, *service.Service, error) {
	app, err := flags.App(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.Repositories.Open(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	return app, svc, nil
}

// serveHooks starts a loopback hook endpoint when a write to an hg
// repository needs one and no server is listening yet. The returned
// function stops it.
func serveHooks(ctx context.Context, app *scmd.App, repo scm.Repository) (func(), error) {
	if repo.Type != hg.Type || app.HookURL() != "" {
		return func() {}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	errCh, err := app.ListenHooks(ctx, loopbackAddr, "")
	if err != nil {
		cancel()
		return nil, err
	}
	return func() {
		cancel()
		<-errCh
	}, nil
}

// repositoryArg returns the first positional argument.
func repositoryArg(c *cli.Command) (string, error) {
	ref := c.Args().First()
	if ref == "" {
		return "", fmt.Errorf("repository is required (namespace/name or id)")
	}
	return ref, nil
}

// requireArgs returns the positional arguments after the repository,
// failing when fewer than n are present.
func requireArgs(c *cli.Command, n int, names ...string) ([]string, error) {
	args := c.Args().Slice()
	if len(args) < n+1 {
		return nil, fmt.Errorf("missing argument(s): %s", strings.Join(names, ", "))
	}
	return args[1:], nil
}

// writeJSON writes obj to the command's writer.
func writeJSON(c *cli.Command, obj any) error {
	return iojson.WriteWith(c.Root().Writer, os.Stderr, obj)
}

// writeJSONLine writes obj as a single JSON line.
func writeJSONLine(c *cli.Command, obj any) error {
	return json.NewEncoder(c.Root().Writer).Encode(obj)
}

// jsonFail reports msg as a JSON error on stderr and exits non-zero.
func jsonFail(msg string, data map[string]any) error {
	_ = iojson.WriteError(msg, data)
	return cli.Exit("", 1)
}

// parsePerson parses "Name <email>" or a bare name.
func parsePerson(s string) (scm.Person, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return scm.Person{}, fmt.Errorf("author is required")
	}
	if !strings.Contains(s, "<") {
		return scm.Person{Name: s}, nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return scm.Person{}, fmt.Errorf("invalid author %q: %w", s, err)
	}
	return scm.Person{Name: addr.Name, Email: addr.Address}, nil
}

// defaultAuthor is the identity used when --author is omitted.
func defaultAuthor() string {
	if v := os.Getenv("SCMD_AUTHOR"); v != "" {
		return v
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "scmd"
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
