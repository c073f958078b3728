package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/colonyops/scmd/internal/core/service"
	"github.com/colonyops/scmd/pkg/iojson"
	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"
)

type ModifyCmd struct {
	flags *Flags
	fr    iojson.FileReader[ModifyInput]
}

// NewModifyCmd creates a new modify command
func NewModifyCmd(flags *Flags) *ModifyCmd {
	return &ModifyCmd{flags: flags}
}

// Register adds the modify command to the application
func (cmd *ModifyCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "modify",
		Usage:     "Commit file changes to a branch from JSON input",
		UsageText: "scmd modify [-f file] <repository>",
		Description: `Reads a change set as JSON from stdin or -f and commits it as a single
changeset. Output is a JSON object with the new revision.

Example input:
  {
    "branch": "main",
    "message": "update readme",
    "author": {"name": "Jane", "email": "jane@example.com"},
    "expected_revision": "",
    "changes": [
      {"action": "create", "path": "docs/new.md", "content": "hello\n"},
      {"action": "modify", "path": "README.md", "content_base64": "aGVsbG8K"},
      {"action": "delete", "path": "old.txt"},
      {"action": "move", "from": "a.txt", "to": "b.txt", "overwrite": true}
    ]
  }`,
		Flags:  []cli.Flag{cmd.fr.Flag()},
		Action: cmd.run,
	})

	return app
}

// ModifyInput is the JSON document the modify command reads.
type ModifyInput struct {
	Branch           string       `json:"branch"`
	Message          string       `json:"message"`
	Author           scm.Person   `json:"author"`
	ExpectedRevision string       `json:"expected_revision,omitempty"`
	Changes          []FileChange `json:"changes"`
}

// FileChange is one entry of a modify change set.
type FileChange struct {
	Action        string `json:"action"`
	Path          string `json:"path,omitempty"`
	Content       string `json:"content,omitempty"`
	ContentBase64 string `json:"content_base64,omitempty"`
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	Overwrite     bool   `json:"overwrite,omitempty"`
}

// ModifyOutput is the JSON result of the modify command.
type ModifyOutput struct {
	Revision string `json:"revision"`
}

const (
	actionCreate = "create"
	actionModify = "modify"
	actionDelete = "delete"
	actionMove   = "move"
)

// Validate checks the modify input for errors using criterio.
func (in ModifyInput) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if strings.TrimSpace(in.Message) == "" {
		errs = errs.Append("message", fmt.Errorf("is required"))
	}
	if strings.TrimSpace(in.Author.Name) == "" {
		errs = errs.Append("author.name", fmt.Errorf("is required"))
	}
	if len(in.Changes) == 0 {
		errs = errs.Append("changes", fmt.Errorf("array is empty"))
	}

	for i, ch := range in.Changes {
		field := fmt.Sprintf("changes[%d]", i)
		switch ch.Action {
		case actionCreate, actionModify:
			if ch.Path == "" {
				errs = errs.Append(field+".path", fmt.Errorf("is required"))
			}
			if ch.Content != "" && ch.ContentBase64 != "" {
				errs = errs.Append(field+".content", fmt.Errorf("content and content_base64 are exclusive"))
			}
			if ch.ContentBase64 != "" {
				if _, err := base64.StdEncoding.DecodeString(ch.ContentBase64); err != nil {
					errs = errs.Append(field+".content_base64", err)
				}
			}
		case actionDelete:
			if ch.Path == "" {
				errs = errs.Append(field+".path", fmt.Errorf("is required"))
			}
		case actionMove:
			if ch.From == "" {
				errs = errs.Append(field+".from", fmt.Errorf("is required"))
			}
			if ch.To == "" {
				errs = errs.Append(field+".to", fmt.Errorf("is required"))
			}
			if ch.From != "" && ch.From == ch.To {
				errs = errs.Append(field+".to", fmt.Errorf("must differ from source"))
			}
		default:
			errs = errs.Append(field+".action", fmt.Errorf("unknown action %q", ch.Action))
		}
	}

	return errs.ToError()
}

// content returns the reader of a create or modify change.
func (ch FileChange) content() io.Reader {
	if ch.ContentBase64 != "" {
		data, _ := base64.StdEncoding.DecodeString(ch.ContentBase64)
		return bytes.NewReader(data)
	}
	return strings.NewReader(ch.Content)
}

func (cmd *ModifyCmd) run(ctx context.Context, c *cli.Command) error {
	ref, err := repositoryArg(c)
	if err != nil {
		return jsonFail(err.Error(), nil)
	}

	input, err := cmd.fr.Read()
	if err != nil {
		return jsonFail(fmt.Sprintf("read input: %s", err), nil)
	}
	if err := input.Validate(); err != nil {
		return jsonFail(fmt.Sprintf("invalid input: %s", err), nil)
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

	b, err := svc.Modify()
	if err != nil {
		return err
	}
	applyChanges(b, input)

	revision, err := b.Execute(ctx)
	if err != nil {
		return err
	}
	return writeJSON(c, ModifyOutput{Revision: revision})
}

// applyChanges copies the input into b in input order.
func applyChanges(b *service.ModifyBuilder, in ModifyInput) {
	b.Branch(in.Branch)
	b.Message(in.Message)
	b.Author(in.Author)
	if in.ExpectedRevision != "" {
		b.ExpectRevision(in.ExpectedRevision)
	}
	for _, ch := range in.Changes {
		switch ch.Action {
		case actionCreate:
			b.CreateFile(ch.Path, ch.content(), ch.Overwrite)
		case actionModify:
			b.ModifyFile(ch.Path, ch.content())
		case actionDelete:
			b.DeleteFile(ch.Path)
		case actionMove:
			b.MoveFile(ch.From, ch.To, ch.Overwrite)
		}
	}
}
