package scm

import (
	"context"
	"io"
)

// Provider is implemented once per backend and owns the repository context
// for one Repository. Command implementations are exposed through the
// optional *Provider interfaces below; a backend must both declare a command
// in SupportedCommands and implement the matching interface.
type Provider interface {
	SupportedCommands() CommandSet
	SupportedFeatures() FeatureSet
	Close() error
}

type LogCommand interface {
	Changeset(ctx context.Context, id string) (Changeset, error)
	Changesets(ctx context.Context, req LogRequest) (ChangesetPage, error)
}

type DiffCommand interface {
	Diff(ctx context.Context, req DiffRequest, w io.Writer) error
}

type BlameCommand interface {
	Blame(ctx context.Context, req BlameRequest) (BlameResult, error)
}

type BrowseCommand interface {
	Browse(ctx context.Context, req BrowseRequest) (BrowserResult, error)
}

type CatCommand interface {
	Cat(ctx context.Context, req CatRequest, w io.Writer) error
}

type TagsCommand interface {
	Tags(ctx context.Context) ([]Tag, error)
}

type BranchesCommand interface {
	Branches(ctx context.Context) ([]Branch, error)
}

type BranchCommand interface {
	Branch(ctx context.Context, req BranchRequest) (Branch, error)
	DeleteBranch(ctx context.Context, name string) error
}

// IncomingCommand lists changesets present in a remote but not locally.
type IncomingCommand interface {
	Incoming(ctx context.Context, req RemoteRequest) (ChangesetPage, error)
}

// OutgoingCommand lists changesets present locally but not in a remote.
type OutgoingCommand interface {
	Outgoing(ctx context.Context, req RemoteRequest) (ChangesetPage, error)
}

type PushCommand interface {
	Push(ctx context.Context, req RemoteRequest) (PushResponse, error)
}

type PullCommand interface {
	Pull(ctx context.Context, req RemoteRequest) (PullResponse, error)
}

type MergeCommand interface {
	Merge(ctx context.Context, req MergeRequest) (MergeResult, error)
	DryRun(ctx context.Context, req MergeRequest) (MergeDryRunResult, error)
}

// ModifyCommand applies a ModifyRequest and returns the new revision.
type ModifyCommand interface {
	Execute(ctx context.Context, req ModifyRequest) (string, error)
}

// BundleCommand writes a backend-native dump of the whole repository.
type BundleCommand interface {
	Bundle(ctx context.Context, w io.Writer) (BundleResponse, error)
}

// UnbundleCommand restores changesets from a backend-native dump.
type UnbundleCommand interface {
	Unbundle(ctx context.Context, r io.Reader) (UnbundleResponse, error)
}

type ModificationsCommand interface {
	Modifications(ctx context.Context, req ModificationsRequest) (Modifications, error)
}

// BundleResponse reports the size of a written bundle.
type BundleResponse struct {
	Bytes int64 `json:"bytes"`
}

// UnbundleResponse reports how many changesets a bundle added.
type UnbundleResponse struct {
	Changesets int `json:"changesetCount"`
}

// ModificationsRequest selects the revision whose touched paths are listed.
// BaseRevision requires FeatureModificationsBetweenRevisions.
type ModificationsRequest struct {
	Revision     string
	BaseRevision string
}

// Validate requires a revision.
func (r ModificationsRequest) Validate() error {
	if r.Revision == "" {
		return Invalid("modifications require a revision")
	}
	return nil
}

type LogProvider interface{ LogCommand() LogCommand }
type DiffProvider interface{ DiffCommand() DiffCommand }
type BlameProvider interface{ BlameCommand() BlameCommand }
type BrowseProvider interface{ BrowseCommand() BrowseCommand }
type CatProvider interface{ CatCommand() CatCommand }
type TagsProvider interface{ TagsCommand() TagsCommand }
type BranchesProvider interface{ BranchesCommand() BranchesCommand }
type BranchProvider interface{ BranchCommand() BranchCommand }
type IncomingProvider interface{ IncomingCommand() IncomingCommand }
type OutgoingProvider interface{ OutgoingCommand() OutgoingCommand }
type PushProvider interface{ PushCommand() PushCommand }
type PullProvider interface{ PullCommand() PullCommand }
type MergeProvider interface{ MergeCommand() MergeCommand }
type ModifyProvider interface{ ModifyCommand() ModifyCommand }
type BundleProvider interface{ BundleCommand() BundleCommand }
type UnbundleProvider interface{ UnbundleCommand() UnbundleCommand }
type ModificationsProvider interface{ ModificationsCommand() ModificationsCommand }

// Resolver creates a Provider for a repository of one backend type.
type Resolver interface {
	Type() string
	Provider(repo Repository) (Provider, error)
}
