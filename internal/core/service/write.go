package service

import (
	"context"
	"io"

	"github.com/colonyops/scmd/internal/core/scm"
)

// BranchBuilder creates and deletes branches.
type BranchBuilder struct {
	s      *Service
	cmd    scm.BranchCommand
	parent string
}

// Branch returns a builder for the BRANCH command.
func (s *Service) Branch() (*BranchBuilder, error) {
	cmd, err := command(s, scm.CommandBranch, scm.BranchProvider.BranchCommand)
	if err != nil {
		return nil, err
	}
	if err := s.writable(scm.CommandBranch); err != nil {
		return nil, err
	}
	return &BranchBuilder{s: s, cmd: cmd}, nil
}

// From sets the parent branch. Empty selects the default branch.
func (b *BranchBuilder) From(parent string) *BranchBuilder { b.parent = parent; return b }

func (b *BranchBuilder) Create(ctx context.Context, name string) (scm.Branch, error) {
	req := scm.BranchRequest{Name: name, Parent: b.parent}
	if err := req.Validate(); err != nil {
		return scm.Branch{}, err
	}
	b.s.log.Debug().Interface("request", req).Msg("branch")
	branch, err := b.cmd.Branch(ctx, req)
	if err != nil {
		return scm.Branch{}, b.s.wrap("branch", err)
	}
	b.s.evict(scm.CommandBranch)
	return branch, nil
}

func (b *BranchBuilder) Delete(ctx context.Context, name string) error {
	if err := scm.ValidBranchName(name); err != nil {
		return err
	}
	b.s.log.Debug().Str("branch", name).Msg("delete branch")
	if err := b.cmd.DeleteBranch(ctx, name); err != nil {
		return b.s.wrap("delete branch", err)
	}
	b.s.evict(scm.CommandBranch)
	return nil
}

// RemoteBuilder addresses another repository. It backs the INCOMING,
// OUTGOING, PUSH and PULL builders.
type RemoteBuilder[T any] struct {
	s   *Service
	req scm.RemoteRequest
	run func(ctx context.Context, req scm.RemoteRequest) (T, error)
	op  scm.Command
}

func (b *RemoteBuilder[T]) Branch(name string) *RemoteBuilder[T] { b.req.Branch = name; return b }

// Force overwrites diverged remote history. Requires FORCE_PUSH.
func (b *RemoteBuilder[T]) Force() *RemoteBuilder[T] { b.req.Force = true; return b }

// Run executes the command against remoteURL.
func (b *RemoteBuilder[T]) Run(ctx context.Context, remoteURL string) (T, error) {
	var zero T
	b.req.RemoteURL = remoteURL
	if err := b.req.Validate(); err != nil {
		return zero, err
	}
	if b.req.Branch != "" {
		if err := scm.ValidBranchName(b.req.Branch); err != nil {
			return zero, err
		}
	}
	if b.req.Force && !b.s.IsFeatureSupported(scm.FeatureForcePush) {
		return zero, scm.Unsupported(b.s.repo, scm.FeatureForcePush)
	}
	b.s.log.Debug().Str("op", string(b.op)).Interface("request", b.req).Msg("remote")

	res, err := b.run(ctx, b.req)
	if err != nil {
		return zero, b.s.wrap(string(b.op), err)
	}
	if b.op == scm.CommandPush || b.op == scm.CommandPull {
		b.s.evict(b.op)
	}
	return res, nil
}

func remote[T any](s *Service, op scm.Command, run func(context.Context, scm.RemoteRequest) (T, error)) *RemoteBuilder[T] {
	return &RemoteBuilder[T]{s: s, op: op, run: run}
}

// Incoming returns a builder for the INCOMING command.
func (s *Service) Incoming() (*RemoteBuilder[scm.ChangesetPage], error) {
	cmd, err := command(s, scm.CommandIncoming, scm.IncomingProvider.IncomingCommand)
	if err != nil {
		return nil, err
	}
	return remote(s, scm.CommandIncoming, cmd.Incoming), nil
}

// Outgoing returns a builder for the OUTGOING command.
func (s *Service) Outgoing() (*RemoteBuilder[scm.ChangesetPage], error) {
	cmd, err := command(s, scm.CommandOutgoing, scm.OutgoingProvider.OutgoingCommand)
	if err != nil {
		return nil, err
	}
	return remote(s, scm.CommandOutgoing, cmd.Outgoing), nil
}

// Push returns a builder for the PUSH command.
func (s *Service) Push() (*RemoteBuilder[scm.PushResponse], error) {
	cmd, err := command(s, scm.CommandPush, scm.PushProvider.PushCommand)
	if err != nil {
		return nil, err
	}
	if err := s.writable(scm.CommandPush); err != nil {
		return nil, err
	}
	return remote(s, scm.CommandPush, cmd.Push), nil
}

// Pull returns a builder for the PULL command.
func (s *Service) Pull() (*RemoteBuilder[scm.PullResponse], error) {
	cmd, err := command(s, scm.CommandPull, scm.PullProvider.PullCommand)
	if err != nil {
		return nil, err
	}
	if err := s.writable(scm.CommandPull); err != nil {
		return nil, err
	}
	return remote(s, scm.CommandPull, cmd.Pull), nil
}

// MergeBuilder merges branches.
type MergeBuilder struct {
	s   *Service
	cmd scm.MergeCommand
	req scm.MergeRequest
}

// Merge returns a builder for the MERGE command. The strategy defaults to
// a merge commit.
func (s *Service) Merge() (*MergeBuilder, error) {
	cmd, err := command(s, scm.CommandMerge, scm.MergeProvider.MergeCommand)
	if err != nil {
		return nil, err
	}
	if err := s.writable(scm.CommandMerge); err != nil {
		return nil, err
	}
	return &MergeBuilder{s: s, cmd: cmd, req: scm.MergeRequest{Strategy: scm.MergeCommit}}, nil
}

func (b *MergeBuilder) Source(branch string) *MergeBuilder { b.req.Source = branch; return b }
func (b *MergeBuilder) Target(branch string) *MergeBuilder { b.req.Target = branch; return b }
func (b *MergeBuilder) Message(msg string) *MergeBuilder   { b.req.Message = msg; return b }
func (b *MergeBuilder) Author(p scm.Person) *MergeBuilder  { b.req.Author = p; return b }
func (b *MergeBuilder) Strategy(st scm.MergeStrategy) *MergeBuilder {
	b.req.Strategy = st
	return b
}

// Execute merges and publishes. Conflicts are reported in the result.
func (b *MergeBuilder) Execute(ctx context.Context) (scm.MergeResult, error) {
	if err := b.req.Validate(); err != nil {
		return scm.MergeResult{}, err
	}
	b.s.log.Debug().Interface("request", b.req).Msg("merge")
	res, err := b.cmd.Merge(ctx, b.req)
	if err != nil {
		return scm.MergeResult{}, b.s.wrap("merge", err)
	}
	if res.Success {
		b.s.evict(scm.CommandMerge)
	}
	return res, nil
}

// DryRun reports whether the merge would succeed without publishing.
func (b *MergeBuilder) DryRun(ctx context.Context) (scm.MergeDryRunResult, error) {
	if err := b.req.Validate(); err != nil {
		return scm.MergeDryRunResult{}, err
	}
	b.s.log.Debug().Interface("request", b.req).Msg("merge dry run")
	res, err := b.cmd.DryRun(ctx, b.req)
	return res, b.s.wrap("merge dry run", err)
}

// ModifyBuilder collects file changes committed as one revision.
type ModifyBuilder struct {
	s   *Service
	cmd scm.ModifyCommand
	req scm.ModifyRequest
}

// Modify returns a builder for the MODIFY command.
func (s *Service) Modify() (*ModifyBuilder, error) {
	cmd, err := command(s, scm.CommandModify, scm.ModifyProvider.ModifyCommand)
	if err != nil {
		return nil, err
	}
	if err := s.writable(scm.CommandModify); err != nil {
		return nil, err
	}
	return &ModifyBuilder{s: s, cmd: cmd}, nil
}

func (b *ModifyBuilder) Branch(name string) *ModifyBuilder   { b.req.Branch = name; return b }
func (b *ModifyBuilder) Message(msg string) *ModifyBuilder   { b.req.CommitMessage = msg; return b }
func (b *ModifyBuilder) Author(p scm.Person) *ModifyBuilder  { b.req.Author = p; return b }
func (b *ModifyBuilder) ExpectRevision(rev string) *ModifyBuilder {
	b.req.ExpectedRevision = rev
	return b
}

func (b *ModifyBuilder) CreateFile(path string, content io.Reader, overwrite bool) *ModifyBuilder {
	return b.add(scm.CreateFile{Path: path, Content: content, Overwrite: overwrite})
}

func (b *ModifyBuilder) ModifyFile(path string, content io.Reader) *ModifyBuilder {
	return b.add(scm.ModifyFile{Path: path, Content: content})
}

func (b *ModifyBuilder) DeleteFile(path string) *ModifyBuilder {
	return b.add(scm.DeleteFile{Path: path})
}

func (b *ModifyBuilder) MoveFile(from, to string, overwrite bool) *ModifyBuilder {
	return b.add(scm.MoveFile{From: from, To: to, Overwrite: overwrite})
}

func (b *ModifyBuilder) add(r scm.PartialRequest) *ModifyBuilder {
	b.req.Requests = append(b.req.Requests, r)
	return b
}

// Request returns the collected request.
func (b *ModifyBuilder) Request() scm.ModifyRequest { return b.req }

// Execute commits the batch and returns the new revision.
func (b *ModifyBuilder) Execute(ctx context.Context) (string, error) {
	if err := b.req.Validate(); err != nil {
		return "", err
	}
	b.s.log.Debug().
		Str("branch", b.req.Branch).
		Str("expected", b.req.ExpectedRevision).
		Int("changes", len(b.req.Requests)).
		Msg("modify")
	revision, err := b.cmd.Execute(ctx, b.req)
	if err != nil {
		return "", b.s.wrap("modify", err)
	}
	b.s.evict(scm.CommandModify)
	return revision, nil
}

// BundleBuilder dumps a repository.
type BundleBuilder struct {
	s   *Service
	cmd scm.BundleCommand
}

// Bundle returns a builder for the BUNDLE command.
func (s *Service) Bundle() (*BundleBuilder, error) {
	cmd, err := command(s, scm.CommandBundle, scm.BundleProvider.BundleCommand)
	if err != nil {
		return nil, err
	}
	return &BundleBuilder{s: s, cmd: cmd}, nil
}

func (b *BundleBuilder) Write(ctx context.Context, w io.Writer) (scm.BundleResponse, error) {
	b.s.log.Debug().Msg("bundle")
	res, err := b.cmd.Bundle(ctx, w)
	return res, b.s.wrap("bundle", err)
}

// UnbundleBuilder restores a dump.
type UnbundleBuilder struct {
	s   *Service
	cmd scm.UnbundleCommand
}

// Unbundle returns a builder for the UNBUNDLE command.
func (s *Service) Unbundle() (*UnbundleBuilder, error) {
	cmd, err := command(s, scm.CommandUnbundle, scm.UnbundleProvider.UnbundleCommand)
	if err != nil {
		return nil, err
	}
	if err := s.writable(scm.CommandUnbundle); err != nil {
		return nil, err
	}
	return &UnbundleBuilder{s: s, cmd: cmd}, nil
}

func (b *UnbundleBuilder) Read(ctx context.Context, r io.Reader) (scm.UnbundleResponse, error) {
	b.s.log.Debug().Msg("unbundle")
	res, err := b.cmd.Unbundle(ctx, r)
	if err != nil {
		return scm.UnbundleResponse{}, b.s.wrap("unbundle", err)
	}
	b.s.evict(scm.CommandUnbundle)
	return res, nil
}
