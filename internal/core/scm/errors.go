package scm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupported is returned when a backend lacks a command or feature.
	ErrUnsupported = errors.New("not supported")
	// ErrNotFound is returned when a path, revision or repository does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a path that exists without overwrite.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConcurrentModification is returned when the expected revision is not the branch head.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrNoChangesMade is returned when a transaction would produce an empty commit.
	ErrNoChangesMade = errors.New("no changes made")
	// ErrInternal wraps native backend, process and I/O failures.
	ErrInternal = errors.New("internal repository error")
	// ErrInvalidRequest is returned when a request fails validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrHookRejected is returned when a pre-receive hook rejected a publish.
	ErrHookRejected = errors.New("rejected by hook")
)

// UnsupportedError reports a command or feature the repository's backend lacks.
type UnsupportedError struct {
	Repository Repository
	What       string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported by %s repository %s", e.What, e.Repository.Type, e.Repository.NamespaceAndName())
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// Unsupported returns an *UnsupportedError for the given command, feature or description.
func Unsupported(repo Repository, what any) error {
	return &UnsupportedError{Repository: repo, What: fmt.Sprint(what)}
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Repository Repository
	Kind       string // path, revision, branch, repository
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in %s", e.Kind, e.ID, e.Repository.NamespaceAndName())
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound returns a *NotFoundError.
func NotFound(repo Repository, kind, id string) error {
	return &NotFoundError{Repository: repo, Kind: kind, ID: id}
}

// AlreadyExistsError reports a path that exists.
type AlreadyExistsError struct {
	Repository Repository
	Path       string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%q already exists in %s", e.Path, e.Repository.NamespaceAndName())
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// AlreadyExists returns an *AlreadyExistsError.
func AlreadyExists(repo Repository, path string) error {
	return &AlreadyExistsError{Repository: repo, Path: path}
}

// ConcurrentModificationError reports an expected revision that is no longer the head.
type ConcurrentModificationError struct {
	Repository Repository
	Branch     string
	Expected   string
	Actual     string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("branch %q of %s was modified concurrently: expected %s, found %s",
		e.Branch, e.Repository.NamespaceAndName(), e.Expected, e.Actual)
}

func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}

// NoChangesError reports a transaction with nothing to commit.
type NoChangesError struct {
	Repository Repository
}

func (e *NoChangesError) Error() string {
	return fmt.Sprintf("no changes were made to %s", e.Repository.NamespaceAndName())
}

func (e *NoChangesError) Is(target error) bool { return target == ErrNoChangesMade }

// NoChanges returns a *NoChangesError.
func NoChanges(repo Repository) error {
	return &NoChangesError{Repository: repo}
}

// InternalError wraps a native failure with the repository it happened in.
type InternalError struct {
	Repository Repository
	Op         string
	Err        error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Repository.NamespaceAndName(), e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func (e *InternalError) Is(target error) bool { return target == ErrInternal }

// Internal wraps err as an *InternalError. A nil err returns nil, and errors
// that already belong to the taxonomy are returned unchanged.
func Internal(repo Repository, op string, err error) error {
	if err == nil || IsKnown(err) {
		return err
	}
	return &InternalError{Repository: repo, Op: op, Err: err}
}

// Invalid returns an error wrapping ErrInvalidRequest.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// IsKnown reports whether err already belongs to the error taxonomy.
func IsKnown(err error) bool {
	for _, target := range []error{
		ErrUnsupported, ErrNotFound, ErrAlreadyExists, ErrConcurrentModification,
		ErrNoChangesMade, ErrInternal, ErrInvalidRequest, ErrHookRejected,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HookRejectedError is returned by a publish step when a pre-receive hook
// listener rejected the incoming changesets.
type HookRejectedError struct {
	Repository Repository
	Messages   []string
	Err        error
}

func (e *HookRejectedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "hook rejected changes to %s", e.Repository.NamespaceAndName())
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *HookRejectedError) Unwrap() error { return e.Err }

func (e *HookRejectedError) Is(target error) bool { return target == ErrHookRejected }
