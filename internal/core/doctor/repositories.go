package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/colonyops/scmd/internal/core/scm"
)

// markers name the entry whose presence identifies a native repository
// directory of each backend type.
var markers = map[string]string{
	"git": "HEAD",
	"hg":  ".hg",
	"svn": "format",
}

// RepositoriesCheck verifies that every registered repository has a native
// repository on disk.
type RepositoriesCheck struct {
	repos []scm.Repository
	dir   func(id string) string
}

// NewRepositoriesCheck creates a repository check. dir maps a repository id
// to its native directory.
func NewRepositoriesCheck(repos []scm.Repository, dir func(id string) string) *RepositoriesCheck {
	return &RepositoriesCheck{repos: repos, dir: dir}
}

func (c *RepositoriesCheck) Name() string {
	return "Repositories"
}

func (c *RepositoriesCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if len(c.repos) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "repositories",
			Status: StatusPass,
			Detail: "none registered",
		})
		return result
	}

	for _, repo := range c.repos {
		label := repo.NamespaceAndName()
		dir := c.dir(repo.ID)

		marker, ok := markers[repo.Type]
		if !ok {
			result.Items = append(result.Items, CheckItem{
				Label:  label,
				Status: StatusFail,
				Detail: fmt.Sprintf("unknown repository type %q", repo.Type),
			})
			continue
		}

		_, err := os.Stat(filepath.Join(dir, marker))
		switch {
		case os.IsNotExist(err):
			result.Items = append(result.Items, CheckItem{
				Label:  label,
				Status: StatusFail,
				Detail: fmt.Sprintf("no %s repository at %s", repo.Type, dir),
			})
		case err != nil:
			result.Items = append(result.Items, CheckItem{
				Label:  label,
				Status: StatusFail,
				Detail: fmt.Sprintf("inaccessible: %v", err),
			})
		case repo.Archived:
			result.Items = append(result.Items, CheckItem{
				Label:  label,
				Status: StatusPass,
				Detail: "archived",
			})
		default:
			result.Items = append(result.Items, CheckItem{
				Label:  label,
				Status: StatusPass,
			})
		}
	}

	return result
}
