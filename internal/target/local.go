package target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
)

// Local mirrors into a directory tree.
type Local struct {
	fs   afero.Fs
	root string

	// rename is fsys.Rename; tests replace it to simulate EXDEV.
	rename func(oldname, newname string) error
}

// NewLocal returns a target rooted at root on fsys.
func NewLocal(fsys afero.Fs, root string) *Local {
	return &Local{fs: fsys, root: root, rename: fsys.Rename}
}

// Root returns the root directory.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) String() string {
	return l.root
}

func (l *Local) abs(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// MkdirAll implements Target.
func (l *Local) MkdirAll(_ context.Context, dir string) error {
	return l.fs.MkdirAll(l.abs(dir), 0o755)
}

// Size implements Target. Directories are reported as absent.
func (l *Local) Size(_ context.Context, path string) (int64, bool, error) {
	info, err := l.fs.Stat(l.abs(path))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if info.IsDir() {
		return 0, false, nil
	}
	return info.Size(), true, nil
}

// Publish implements Target. When the staging file lives on another device
// it is first copied next to the destination so the final step is still a
// rename.
func (l *Local) Publish(_ context.Context, stagingPath, path string) error {
	dest := l.abs(path)
	if err := l.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	err := l.rename(stagingPath, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("rename: %w", err)
	}

	tmp := dest + ".putio-sync.tmp"
	if err := l.copyFile(stagingPath, tmp); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("copy across devices: %w", err)
	}
	if err := l.fs.Rename(tmp, dest); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	_ = l.fs.Remove(stagingPath)
	return nil
}

func (l *Local) copyFile(src, dst string) error {
	in, err := l.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := l.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Close implements Target.
func (l *Local) Close() error {
	return nil
}
