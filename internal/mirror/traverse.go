package mirror

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/verygreenboi/putio-trauma/internal/metrics"
	"github.com/verygreenboi/putio-trauma/internal/remote"
	"github.com/verygreenboi/putio-trauma/internal/target"
)

// folderFrame is a folder waiting to be expanded.
type folderFrame struct {
	id     int64
	parent string
	depth  int
	name   string

	// root is the sync root, which may map onto the target root itself.
	root bool
}

// Traverser walks a remote folder tree, mirrors its directory structure onto
// the target and collects the files found. A Traverser remembers the folders
// it expanded, so each run needs a new one.
type Traverser struct {
	lister  remote.Lister
	target  target.Target
	log     *zap.Logger
	metrics *metrics.Metrics

	visited map[int64]struct{}
}

// NewTraverser returns a traverser with an empty visited set.
func NewTraverser(l remote.Lister, t target.Target, log *zap.Logger, m *metrics.Metrics) *Traverser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Traverser{
		lister:  l,
		target:  t,
		log:     log,
		metrics: m,
		visited: make(map[int64]struct{}),
	}
}

// Traverse expands folderID and every folder below it, depth first, using
// an explicit stack. name is the directory the folder maps to under the
// target root; an empty name maps the folder onto the root itself.
//
// A folder id is expanded at most once, which makes cycles in the remote
// graph harmless. Failing to create a directory or to list a folder aborts
// the traversal.
func (t *Traverser) Traverse(ctx context.Context, folderID int64, name string) ([]Task, error) {
	var tasks []Task

	stack := []folderFrame{{id: folderID, name: name, root: true}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := t.visited[frame.id]; seen {
			t.log.Debug("folder already visited", zap.Int64("folder_id", frame.id))
			continue
		}
		t.visited[frame.id] = struct{}{}

		dir := frame.parent
		if !frame.root || frame.name != "" {
			dir = path.Join(frame.parent, safeName(frame.name))
		}

		t.log.Info("scanning folder",
			zap.Int64("folder_id", frame.id),
			zap.String("path", displayPath(dir)),
			zap.Int("depth", frame.depth))

		if err := t.target.MkdirAll(ctx, dir); err != nil {
			return nil, &LocalIOError{Op: "mkdir", Path: displayPath(dir), Err: err}
		}

		children, err := t.lister.ListChildren(ctx, frame.id)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", displayPath(dir), err)
		}
		t.metrics.FolderListed()

		files := 0
		for _, child := range children {
			if child.IsFolder() {
				stack = append(stack, folderFrame{
					id:     child.ID,
					parent: dir,
					depth:  frame.depth + 1,
					name:   child.Name,
				})
				continue
			}
			tasks = append(tasks, Task{
				Entry:      child,
				TargetPath: path.Join(dir, safeName(child.Name)),
				Depth:      frame.depth,
			})
			files++
		}
		t.metrics.FilesDiscovered(files)
	}

	return tasks, nil
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
