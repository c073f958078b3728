package doctor

import (
	"context"
	"os/exec"
)

// lookPathFunc is the function used to find executables on PATH.
// Package-level variable to allow test overrides.
var lookPathFunc = exec.LookPath

// Tool is an external program a backend drives.
type Tool struct {
	Label string // e.g. "hg"
	Path  string // configured command, resolved through PATH
	// Purpose is appended to the detail when the tool is missing.
	Purpose string
	// Required fails the check when missing. Optional tools only warn.
	Required bool
}

// ToolsCheck verifies that the configured version control tools are
// available on $PATH.
type ToolsCheck struct {
	tools []Tool
}

// NewToolsCheck creates a new tools check.
func NewToolsCheck(tools ...Tool) *ToolsCheck {
	return &ToolsCheck{tools: tools}
}

func (c *ToolsCheck) Name() string {
	return "Tools"
}

func (c *ToolsCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	for _, tool := range c.tools {
		path, err := lookPathFunc(tool.Path)
		if err == nil {
			result.Items = append(result.Items, CheckItem{
				Label:  tool.Label,
				Status: StatusPass,
				Detail: path,
			})
			continue
		}

		status := StatusWarn
		if tool.Required {
			status = StatusFail
		}
		detail := tool.Path + " not found on PATH"
		if tool.Purpose != "" {
			detail += " (required for " + tool.Purpose + ")"
		}
		result.Items = append(result.Items, CheckItem{
			Label:  tool.Label,
			Status: status,
			Detail: detail,
		})
	}

	return result
}
