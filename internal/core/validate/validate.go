// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/colonyops/scmd/internal/core/scm"
	"github.com/hay-kot/criterio"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Name validates a repository namespace or name. Names become path
// segments of repository references, so slashes are rejected.
func Name(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if !namePattern.MatchString(name) || strings.HasSuffix(name, ".") {
		return fmt.Errorf("invalid name %q: use letters, digits, '.', '_' and '-'", name)
	}
	return nil
}

// Type returns a validator accepting one of the known repository types.
func Type(known []string) func(string) error {
	return func(typ string) error {
		if typ == "" {
			return fmt.Errorf("type is required")
		}
		if !slices.Contains(known, typ) {
			return fmt.Errorf("unknown type %q (available: %s)", typ, strings.Join(known, ", "))
		}
		return nil
	}
}

// Repository validates the user supplied fields of a new repository.
func Repository(repo scm.Repository, types []string) error {
	return criterio.ValidateStruct(
		criterio.Run("namespace", repo.Namespace, Name),
		criterio.Run("name", repo.Name, Name),
		criterio.Run("type", repo.Type, Type(types)),
	)
}

// Revision validates an optional revision reference.
func Revision(rev string) error {
	if rev != strings.TrimSpace(rev) || strings.ContainsAny(rev, "\n\x00") {
		return fmt.Errorf("invalid revision %q", rev)
	}
	return nil
}
