package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTools = []Tool{
	{Label: "git", Path: "git", Purpose: "git merges and bundles", Required: true},
	{Label: "hg", Path: "/opt/hg/bin/hg", Purpose: "hg repositories"},
}

func TestToolsCheck_AllPresent(t *testing.T) {
	orig := lookPathFunc
	t.Cleanup(func() { lookPathFunc = orig })

	lookPathFunc = func(file string) (string, error) {
		return "/usr/bin/" + file, nil
	}

	result := NewToolsCheck(testTools...).Run(context.Background())

	assert.Equal(t, "Tools", result.Name)
	require.Len(t, result.Items, 2)

	assert.Equal(t, "git", result.Items[0].Label)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, "/usr/bin/git", result.Items[0].Detail)

	assert.Equal(t, "hg", result.Items[1].Label)
	assert.Equal(t, StatusPass, result.Items[1].Status)
}

func TestToolsCheck_RequiredMissing(t *testing.T) {
	orig := lookPathFunc
	t.Cleanup(func() { lookPathFunc = orig })

	lookPathFunc = func(file string) (string, error) {
		if file == "git" {
			return "", &exec.Error{Name: file, Err: fmt.Errorf("not found")}
		}
		return file, nil
	}

	result := NewToolsCheck(testTools...).Run(context.Background())

	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Contains(t, result.Items[0].Detail, "git merges and bundles")
	assert.Equal(t, StatusPass, result.Items[1].Status)
}

func TestToolsCheck_OptionalMissing(t *testing.T) {
	orig := lookPathFunc
	t.Cleanup(func() { lookPathFunc = orig })

	lookPathFunc = func(file string) (string, error) {
		if file == "/opt/hg/bin/hg" {
			return "", &exec.Error{Name: file, Err: fmt.Errorf("not found")}
		}
		return "/usr/bin/" + file, nil
	}

	result := NewToolsCheck(testTools...).Run(context.Background())

	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, StatusWarn, result.Items[1].Status)
	assert.Contains(t, result.Items[1].Detail, "/opt/hg/bin/hg not found on PATH")
}
