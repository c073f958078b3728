package scm

import "slices"

// Command identifies a repository command a backend may support.
type Command string

const (
	CommandBlame         Command = "BLAME"
	CommandBrowse        Command = "BROWSE"
	CommandCat           Command = "CAT"
	CommandDiff          Command = "DIFF"
	CommandLog           Command = "LOG"
	CommandTags          Command = "TAGS"
	CommandBranches      Command = "BRANCHES"
	CommandBranch        Command = "BRANCH"
	CommandIncoming      Command = "INCOMING"
	CommandOutgoing      Command = "OUTGOING"
	CommandPush          Command = "PUSH"
	CommandPull          Command = "PULL"
	CommandMerge         Command = "MERGE"
	CommandModify        Command = "MODIFY"
	CommandBundle        Command = "BUNDLE"
	CommandUnbundle      Command = "UNBUNDLE"
	CommandModifications Command = "MODIFICATIONS"
)

// AllCommands lists every known command in declaration order.
var AllCommands = []Command{
	CommandBlame, CommandBrowse, CommandCat, CommandDiff, CommandLog,
	CommandTags, CommandBranches, CommandBranch, CommandIncoming, CommandOutgoing,
	CommandPush, CommandPull, CommandMerge, CommandModify, CommandBundle,
	CommandUnbundle, CommandModifications,
}

// Feature identifies an optional behavioral capability of a backend.
// Missing features trigger a fallback in the caller, not a failure.
type Feature string

const (
	// FeatureIncomingRevision means incoming changesets carry revision info.
	FeatureIncomingRevision Feature = "INCOMING_REVISION"
	// FeatureModificationsBetweenRevisions means MODIFICATIONS accepts a base revision.
	FeatureModificationsBetweenRevisions Feature = "MODIFICATIONS_BETWEEN_REVISIONS"
	// FeatureForcePush means PUSH honors the force flag.
	FeatureForcePush Feature = "FORCE_PUSH"
)

// CommandSet is an immutable set of commands.
type CommandSet struct {
	items []Command
}

// NewCommandSet builds a set from cmds.
func NewCommandSet(cmds ...Command) CommandSet {
	items := slices.Clone(cmds)
	slices.Sort(items)
	return CommandSet{items: slices.Compact(items)}
}

// Contains reports whether c is in the set.
func (s CommandSet) Contains(c Command) bool {
	_, found := slices.BinarySearch(s.items, c)
	return found
}

// Items returns a copy of the set's members.
func (s CommandSet) Items() []Command {
	return slices.Clone(s.items)
}

// FeatureSet is an immutable set of features.
type FeatureSet struct {
	items []Feature
}

// NewFeatureSet builds a set from features.
func NewFeatureSet(features ...Feature) FeatureSet {
	items := slices.Clone(features)
	slices.Sort(items)
	return FeatureSet{items: slices.Compact(items)}
}

// Contains reports whether f is in the set.
func (s FeatureSet) Contains(f Feature) bool {
	_, found := slices.BinarySearch(s.items, f)
	return found
}

// Items returns a copy of the set's members.
func (s FeatureSet) Items() []Feature {
	return slices.Clone(s.items)
}
