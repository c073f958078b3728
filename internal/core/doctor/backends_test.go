package doctor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendsCheck(t *testing.T) {
	result := NewBackendsCheck(map[string][]string{
		"svn": {"LOG", "CAT"},
		"git": {"MERGE"},
	}).Run(context.Background())

	require.Len(t, result.Items, 2)
	assert.Equal(t, "git", result.Items[0].Label)
	assert.Equal(t, "svn", result.Items[1].Label)
	assert.Equal(t, "cat, log", result.Items[1].Detail)
}

func TestBackendsCheck_NoneRegistered(t *testing.T) {
	result := NewBackendsCheck(nil).Run(context.Background())

	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}
