package doctor

import (
	"context"
	"maps"
	"slices"
	"strings"
)

// BackendsCheck lists the commands each registered backend supports.
type BackendsCheck struct {
	commands map[string][]string
}

// NewBackendsCheck creates a backend check from backend type to the
// names of its supported commands.
func NewBackendsCheck(commands map[string][]string) *BackendsCheck {
	return &BackendsCheck{commands: commands}
}

func (c *BackendsCheck) Name() string {
	return "Backends"
}

func (c *BackendsCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if len(c.commands) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "backends",
			Status: StatusFail,
			Detail: "no backend registered",
		})
		return result
	}

	for _, typ := range sortedKeys(c.commands) {
		cmds := slices.Sorted(slices.Values(c.commands[typ]))
		result.Items = append(result.Items, CheckItem{
			Label:  typ,
			Status: StatusPass,
			Detail: strings.ToLower(strings.Join(cmds, ", ")),
		})
	}

	return result
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
