package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Lister lists the direct children of a folder. Implementations exhaust
// pagination before returning.
type Lister interface {
	ListChildren(ctx context.Context, folderID int64) ([]Entry, error)
}

// Client is the remote storage surface the sync engine depends on.
type Client interface {
	Lister

	// GetEntry returns the record of a single entry.
	GetEntry(ctx context.Context, id int64) (Entry, error)

	// DownloadURL returns a URL from which the file's bytes can be fetched.
	DownloadURL(id int64) string
}

// Folder identifies a sync root. Name is empty for the account root, in
// which case the local destination itself mirrors the root.
type Folder struct {
	ID   int64
	Name string
}

// IsRootRef reports whether ref names the account root.
func IsRootRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	return ref == "" || ref == "/" || strings.EqualFold(ref, "root")
}

// Resolve turns a user supplied folder reference into a sync root. A
// reference is either the root sentinel, a numeric folder id, or a
// slash-separated path from the root.
func Resolve(ctx context.Context, c Client, ref string) (Folder, error) {
	if IsRootRef(ref) {
		return Folder{ID: RootID}, nil
	}

	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id >= 0 {
		entry, err := c.GetEntry(ctx, id)
		if err != nil {
			return Folder{}, err
		}
		if !entry.IsFolder() {
			return Folder{}, fmt.Errorf("%w: %d (%s) is a %s", ErrNotFolder, id, entry.Name, entry.Kind)
		}
		return Folder{ID: entry.ID, Name: entry.Name}, nil
	}

	entry, err := ResolvePath(ctx, c, ref)
	if err != nil {
		return Folder{}, err
	}
	return Folder{ID: entry.ID, Name: entry.Name}, nil
}

// ResolvePath walks a slash-separated path from the root, issuing one listing
// per segment and matching folder children by exact name. The root path
// resolves without any remote call.
func ResolvePath(ctx context.Context, l Lister, path string) (Entry, error) {
	current := Entry{ID: RootID, Kind: KindFolder}
	if IsRootRef(path) {
		return current, nil
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}

		children, err := l.ListChildren(ctx, current.ID)
		if err != nil {
			return Entry{}, err
		}

		next, ok := findFolder(children, segment)
		if !ok {
			return Entry{}, fmt.Errorf("%w: %q has no folder named %q", ErrPathNotFound, path, segment)
		}
		current = next
	}

	return current, nil
}

func findFolder(children []Entry, name string) (Entry, bool) {
	for _, child := range children {
		if child.IsFolder() && child.Name == name {
			return child, true
		}
	}
	return Entry{}, false
}

// IsNotFound reports whether err means the requested folder does not exist
// or is not usable as a sync root.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrNotFolder)
}
