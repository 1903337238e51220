package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

// Target is the destination a sync run mirrors into. Paths are slash
// separated and relative to the target root.
type Target interface {
	// MkdirAll ensures a directory exists.
	MkdirAll(ctx context.Context, dir string) error

	// Size returns the byte length of the file at path. ok is false when no
	// file exists there.
	Size(ctx context.Context, path string) (size int64, ok bool, err error)

	// Publish atomically moves the staged file at stagingPath to path,
	// replacing any previous file.
	Publish(ctx context.Context, stagingPath, path string) error

	// String describes the target for logs.
	String() string

	Close() error
}

// IsURL reports whether dest names a bucket rather than a local directory.
func IsURL(dest string) bool {
	return strings.Contains(dest, "://")
}

// Open returns the target for dest. Bucket URLs (s3://, file://,
// mem://) open a blob bucket; anything else is a local directory. staging is
// the filesystem holding staged downloads; a local target must share it so
// publishing is a rename.
func Open(ctx context.Context, dest string, staging afero.Fs) (Target, error) {
	if IsURL(dest) {
		return OpenBucket(ctx, dest, staging)
	}

	root, err := homedir.Expand(dest)
	if err != nil {
		return nil, fmt.Errorf("expand destination: %w", err)
	}
	return NewLocal(staging, root), nil
}
