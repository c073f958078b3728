package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// PoolCheck reports working copies left behind in the pool directories.
// A working copy outlives its command only when the process died while
// holding it.
type PoolCheck struct {
	dirs map[string]string
	fix  bool
}

// NewPoolCheck creates a pool check over the pool root of each backend.
// With fix set, stale working copies are removed.
func NewPoolCheck(dirs map[string]string, fix bool) *PoolCheck {
	return &PoolCheck{dirs: dirs, fix: fix}
}

func (c *PoolCheck) Name() string {
	return "Working Copies"
}

func (c *PoolCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	for _, backend := range sortedKeys(c.dirs) {
		root := c.dirs[backend]
		entries, err := os.ReadDir(root)
		switch {
		case os.IsNotExist(err):
			result.Items = append(result.Items, CheckItem{
				Label:  backend,
				Status: StatusPass,
				Detail: "pool not created yet",
			})
			continue
		case err != nil:
			result.Items = append(result.Items, CheckItem{
				Label:  backend,
				Status: StatusFail,
				Detail: fmt.Sprintf("inaccessible: %v", err),
			})
			continue
		}

		stale := 0
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if c.fix {
				if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
					result.Items = append(result.Items, CheckItem{
						Label:  backend,
						Status: StatusFail,
						Detail: fmt.Sprintf("remove %s: %v", e.Name(), err),
					})
					continue
				}
			}
			stale++
		}

		switch {
		case stale == 0:
			result.Items = append(result.Items, CheckItem{Label: backend, Status: StatusPass, Detail: root})
		case c.fix:
			result.Items = append(result.Items, CheckItem{
				Label:  backend,
				Status: StatusPass,
				Detail: fmt.Sprintf("removed %d stale working copies", stale),
			})
		default:
			result.Items = append(result.Items, CheckItem{
				Label:   backend,
				Status:  StatusWarn,
				Detail:  fmt.Sprintf("%d stale working copies in %s", stale, root),
				Fixable: true,
			})
		}
	}

	return result
}
