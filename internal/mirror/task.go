package mirror

import (
	"cmp"
	"slices"
	"strings"

	"github.com/verygreenboi/putio-trauma/internal/remote"
)

// Task is one remote file to mirror.
type Task struct {
	Entry remote.Entry

	// TargetPath is the slash-separated path under the sync root, built from
	// the names of the folders between the sync root and the file.
	TargetPath string

	// Depth of the folder holding the file; files in the sync root have
	// depth 0.
	Depth int
}

// SortTasks orders tasks deepest first, then by ascending remote id. The
// order is total, so it does not depend on listing order.
func SortTasks(tasks []Task) {
	slices.SortFunc(tasks, func(a, b Task) int {
		if c := cmp.Compare(b.Depth, a.Depth); c != 0 {
			return c
		}
		return cmp.Compare(a.Entry.ID, b.Entry.ID)
	})
}

// safeName turns a remote name into a single path element.
func safeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\x00", "_")
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
