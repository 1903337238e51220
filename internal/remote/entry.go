package remote

import (
	"strings"
	"time"
)

// RootID is the id of the account's top-level folder.
const RootID int64 = 0

// Kind classifies a remote entry. Only folders are traversed; everything else
// is downloaded.
type Kind int

const (
	KindOther Kind = iota
	KindFile
	KindFolder
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "other"
	}
}

// ParseKind maps a raw file type reported by the remote to a Kind.
func ParseKind(raw string) Kind {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "FOLDER":
		return KindFolder
	case "FILE", "VIDEO", "AUDIO", "IMAGE", "TEXT", "PDF", "ARCHIVE", "SWF":
		return KindFile
	default:
		return KindOther
	}
}

// Entry is a snapshot of one remote file or folder as reported by a listing.
type Entry struct {
	ID       int64
	Name     string
	Kind     Kind
	ParentID int64

	// Size is nil when the remote did not report one.
	Size *int64

	ContentType string
	CreatedAt   *time.Time
	Shared      *bool
	Screenshot  string
}

// IsFolder reports whether the entry is a folder.
func (e Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// KnownSize returns the entry size and whether the remote reported one.
func (e Entry) KnownSize() (int64, bool) {
	if e.Size == nil {
		return 0, false
	}
	return *e.Size, true
}

// SizeOrUnknown returns the entry size, or -1 when it is unknown.
func (e Entry) SizeOrUnknown() int64 {
	if e.Size == nil {
		return -1
	}
	return *e.Size
}
