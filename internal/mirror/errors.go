package mirror

import "fmt"

// LocalIOError is a failure to create a directory or publish a file on the
// sync target.
type LocalIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("mirror: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error {
	return e.Err
}
