package service

import (
	"bytes"
	"context"
	"io"

	"github.com/colonyops/scmd/internal/core/scm"
)

// LogBuilder lists changesets.
type LogBuilder struct {
	s       *Service
	cmd     scm.LogCommand
	req     scm.LogRequest
	noCache bool
}

// Log returns a builder for the LOG command.
func (s *Service) Log() (*LogBuilder, error) {
	cmd, err := command(s, scm.CommandLog, scm.LogProvider.LogCommand)
	if err != nil {
		return nil, err
	}
	return &LogBuilder{s: s, cmd: cmd}, nil
}

func (b *LogBuilder) Branch(name string) *LogBuilder { b.req.Branch = name; return b }
func (b *LogBuilder) Path(p string) *LogBuilder      { b.req.Path = p; return b }
func (b *LogBuilder) Ancestor(rev string) *LogBuilder {
	b.req.Ancestor = rev
	return b
}

// Range limits the log to changesets between start and end.
func (b *LogBuilder) Range(start, end string) *LogBuilder {
	b.req.StartRevision, b.req.EndRevision = start, end
	return b
}

// Page selects a window of the result.
func (b *LogBuilder) Page(offset, limit int) *LogBuilder {
	b.req.Offset, b.req.Limit = offset, limit
	return b
}

func (b *LogBuilder) DisableCache() *LogBuilder { b.noCache = true; return b }

// Changeset loads a single changeset.
func (b *LogBuilder) Changeset(ctx context.Context, id string) (scm.Changeset, error) {
	if id == "" {
		return scm.Changeset{}, scm.Invalid("changeset id is required")
	}
	b.s.log.Debug().Str("id", id).Msg("log changeset")
	cs, err := cached(b.s.caches.get(scm.CommandLog), b.noCache, b.s.cacheKey("changeset|"+id), func() (scm.Changeset, error) {
		return b.cmd.Changeset(ctx, id)
	})
	return cs, b.s.wrap("log", err)
}

// Changesets runs the query.
func (b *LogBuilder) Changesets(ctx context.Context) (scm.ChangesetPage, error) {
	if err := b.req.Validate(); err != nil {
		return scm.ChangesetPage{}, err
	}
	if b.req.Branch != "" {
		if err := scm.ValidBranchName(b.req.Branch); err != nil {
			return scm.ChangesetPage{}, err
		}
	}
	b.s.log.Debug().Interface("request", b.req).Msg("log")
	page, err := cached(b.s.caches.get(scm.CommandLog), b.noCache, b.s.cacheKey(b.req.CacheKey()), func() (scm.ChangesetPage, error) {
		return b.cmd.Changesets(ctx, b.req)
	})
	return page, b.s.wrap("log", err)
}

// DiffBuilder writes unified diffs.
type DiffBuilder struct {
	s   *Service
	cmd scm.DiffCommand
	req scm.DiffRequest
}

// Diff returns a builder for the DIFF command.
func (s *Service) Diff() (*DiffBuilder, error) {
	cmd, err := command(s, scm.CommandDiff, scm.DiffProvider.DiffCommand)
	if err != nil {
		return nil, err
	}
	return &DiffBuilder{s: s, cmd: cmd}, nil
}

func (b *DiffBuilder) Revision(rev string) *DiffBuilder { b.req.Revision = rev; return b }
func (b *DiffBuilder) Ancestor(rev string) *DiffBuilder {
	b.req.AncestorRevision = rev
	return b
}
func (b *DiffBuilder) Path(p string) *DiffBuilder { b.req.Path = p; return b }

// Write streams the diff to w.
func (b *DiffBuilder) Write(ctx context.Context, w io.Writer) error {
	if err := b.req.Validate(); err != nil {
		return err
	}
	b.s.log.Debug().Interface("request", b.req).Msg("diff")
	return b.s.wrap("diff", b.cmd.Diff(ctx, b.req, w))
}

// String returns the diff as a string.
func (b *DiffBuilder) String(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if err := b.Write(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BlameBuilder annotates files.
type BlameBuilder struct {
	s        *Service
	cmd      scm.BlameCommand
	revision string
	noCache  bool
}

// Blame returns a builder for the BLAME command.
func (s *Service) Blame() (*BlameBuilder, error) {
	cmd, err := command(s, scm.CommandBlame, scm.BlameProvider.BlameCommand)
	if err != nil {
		return nil, err
	}
	return &BlameBuilder{s: s, cmd: cmd}, nil
}

func (b *BlameBuilder) Revision(rev string) *BlameBuilder { b.revision = rev; return b }
func (b *BlameBuilder) DisableCache() *BlameBuilder      { b.noCache = true; return b }

// Annotate blames path.
func (b *BlameBuilder) Annotate(ctx context.Context, path string) (scm.BlameResult, error) {
	req := scm.BlameRequest{Revision: b.revision, Path: path}
	if err := req.Validate(); err != nil {
		return scm.BlameResult{}, err
	}
	b.s.log.Debug().Interface("request", req).Msg("blame")
	res, err := cached(b.s.caches.get(scm.CommandBlame), b.noCache, b.s.cacheKey(req.CacheKey()), func() (scm.BlameResult, error) {
		return b.cmd.Blame(ctx, req)
	})
	return res, b.s.wrap("blame", err)
}

// BrowseBuilder lists directories.
type BrowseBuilder struct {
	s       *Service
	cmd     scm.BrowseCommand
	req     scm.BrowseRequest
	noCache bool
}

// Browse returns a builder for the BROWSE command.
func (s *Service) Browse() (*BrowseBuilder, error) {
	cmd, err := command(s, scm.CommandBrowse, scm.BrowseProvider.BrowseCommand)
	if err != nil {
		return nil, err
	}
	return &BrowseBuilder{s: s, cmd: cmd}, nil
}

func (b *BrowseBuilder) Revision(rev string) *BrowseBuilder { b.req.Revision = rev; return b }
func (b *BrowseBuilder) Path(p string) *BrowseBuilder       { b.req.Path = p; return b }
func (b *BrowseBuilder) Recursive() *BrowseBuilder          { b.req.Recursive = true; return b }
func (b *BrowseBuilder) DisableCache() *BrowseBuilder       { b.noCache = true; return b }

// Browse lists the selected directory.
func (b *BrowseBuilder) Browse(ctx context.Context) (scm.BrowserResult, error) {
	b.s.log.Debug().Interface("request", b.req).Msg("browse")
	res, err := cached(b.s.caches.get(scm.CommandBrowse), b.noCache, b.s.cacheKey(b.req.CacheKey()), func() (scm.BrowserResult, error) {
		return b.cmd.Browse(ctx, b.req)
	})
	return res, b.s.wrap("browse", err)
}

// CatBuilder reads file contents.
type CatBuilder struct {
	s        *Service
	cmd      scm.CatCommand
	revision string
}

// Cat returns a builder for the CAT command.
func (s *Service) Cat() (*CatBuilder, error) {
	cmd, err := command(s, scm.CommandCat, scm.CatProvider.CatCommand)
	if err != nil {
		return nil, err
	}
	return &CatBuilder{s: s, cmd: cmd}, nil
}

func (b *CatBuilder) Revision(rev string) *CatBuilder { b.revision = rev; return b }

// Write streams the content of path to w.
func (b *CatBuilder) Write(ctx context.Context, path string, w io.Writer) error {
	req := scm.CatRequest{Revision: b.revision, Path: path}
	if err := req.Validate(); err != nil {
		return err
	}
	b.s.log.Debug().Interface("request", req).Msg("cat")
	return b.s.wrap("cat", b.cmd.Cat(ctx, req, w))
}

// Content returns the content of path.
func (b *CatBuilder) Content(ctx context.Context, path string) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Write(ctx, path, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TagsBuilder lists tags.
type TagsBuilder struct {
	s       *Service
	cmd     scm.TagsCommand
	noCache bool
}

// Tags returns a builder for the TAGS command.
func (s *Service) Tags() (*TagsBuilder, error) {
	cmd, err := command(s, scm.CommandTags, scm.TagsProvider.TagsCommand)
	if err != nil {
		return nil, err
	}
	return &TagsBuilder{s: s, cmd: cmd}, nil
}

func (b *TagsBuilder) DisableCache() *TagsBuilder { b.noCache = true; return b }

func (b *TagsBuilder) Tags(ctx context.Context) ([]scm.Tag, error) {
	tags, err := cached(b.s.caches.get(scm.CommandTags), b.noCache, b.s.cacheKey("tags"), func() ([]scm.Tag, error) {
		return b.cmd.Tags(ctx)
	})
	return tags, b.s.wrap("tags", err)
}

// BranchesBuilder lists branches.
type BranchesBuilder struct {
	s       *Service
	cmd     scm.BranchesCommand
	noCache bool
}

// Branches returns a builder for the BRANCHES command.
func (s *Service) Branches() (*BranchesBuilder, error) {
	cmd, err := command(s, scm.CommandBranches, scm.BranchesProvider.BranchesCommand)
	if err != nil {
		return nil, err
	}
	return &BranchesBuilder{s: s, cmd: cmd}, nil
}

func (b *BranchesBuilder) DisableCache() *BranchesBuilder { b.noCache = true; return b }

func (b *BranchesBuilder) Branches(ctx context.Context) ([]scm.Branch, error) {
	branches, err := cached(b.s.caches.get(scm.CommandBranches), b.noCache, b.s.cacheKey("branches"), func() ([]scm.Branch, error) {
		return b.cmd.Branches(ctx)
	})
	return branches, b.s.wrap("branches", err)
}

// ModificationsBuilder lists the paths touched by a revision.
type ModificationsBuilder struct {
	s   *Service
	cmd scm.ModificationsCommand
	req scm.ModificationsRequest
}

// Modifications returns a builder for the MODIFICATIONS command.
func (s *Service) Modifications() (*ModificationsBuilder, error) {
	cmd, err := command(s, scm.CommandModifications, scm.ModificationsProvider.ModificationsCommand)
	if err != nil {
		return nil, err
	}
	return &ModificationsBuilder{s: s, cmd: cmd}, nil
}

func (b *ModificationsBuilder) Revision(rev string) *ModificationsBuilder {
	b.req.Revision = rev
	return b
}

// Since compares against base instead of the revision's parent.
func (b *ModificationsBuilder) Since(base string) *ModificationsBuilder {
	b.req.BaseRevision = base
	return b
}

func (b *ModificationsBuilder) Modifications(ctx context.Context) (scm.Modifications, error) {
	if err := b.req.Validate(); err != nil {
		return scm.Modifications{}, err
	}
	if b.req.BaseRevision != "" && !b.s.IsFeatureSupported(scm.FeatureModificationsBetweenRevisions) {
		return scm.Modifications{}, scm.Unsupported(b.s.repo, scm.FeatureModificationsBetweenRevisions)
	}
	b.s.log.Debug().Interface("request", b.req).Msg("modifications")
	mods, err := b.cmd.Modifications(ctx, b.req)
	return mods, b.s.wrap("modifications", err)
}
