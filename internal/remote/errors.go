package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is matched by every failure to talk to the remote store.
	ErrUnavailable = errors.New("remote: storage unavailable")
	// ErrNotFound is returned when a requested entry does not exist.
	ErrNotFound = errors.New("remote: entry not found")
	// ErrNotFolder is returned when a sync root resolves to a non-folder.
	ErrNotFolder = errors.New("remote: not a folder")
	// ErrPathNotFound is returned when a path segment has no matching folder.
	ErrPathNotFound = errors.New("remote: folder path not found")
)

// Error describes a failed remote operation.
type Error struct {
	Op  string
	ID  int64
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote: %s %d: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every Error match ErrUnavailable unless it wraps ErrNotFound.
func (e *Error) Is(target error) bool {
	return target == ErrUnavailable && !errors.Is(e.Err, ErrNotFound)
}
