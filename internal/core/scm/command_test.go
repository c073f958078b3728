package scm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandSet(t *testing.T) {
	set := NewCommandSet(CommandLog, CommandCat, CommandLog, CommandBlame)

	assert.True(t, set.Contains(CommandLog))
	assert.True(t, set.Contains(CommandCat))
	assert.False(t, set.Contains(CommandMerge))
	assert.Len(t, set.Items(), 3, "duplicates are collapsed")

	items := set.Items()
	items[0] = CommandMerge
	assert.False(t, set.Contains(CommandMerge), "Items returns a copy")
}

func TestFeatureSet(t *testing.T) {
	empty := NewFeatureSet()
	assert.False(t, empty.Contains(FeatureForcePush))

	set := NewFeatureSet(FeatureForcePush)
	assert.True(t, set.Contains(FeatureForcePush))
	assert.False(t, set.Contains(FeatureIncomingRevision))
}
