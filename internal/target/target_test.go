package target

import (
	"context"
	"os"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

func stage(t *testing.T, fsys afero.Fs, path string, data string) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll("/staging", 0o700))
	require.NoError(t, afero.WriteFile(fsys, path, []byte(data), 0o644))
}

func TestLocalSize(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/sync/Movies/a.mkv", []byte("12345"), 0o644))
	l := NewLocal(fsys, "/sync")
	ctx := context.Background()

	size, ok, err := l.Size(ctx, "Movies/a.mkv")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), size)

	_, ok, err = l.Size(ctx, "Movies/missing.mkv")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = l.Size(ctx, "Movies")
	require.NoError(t, err)
	assert.False(t, ok, "directories are not files")
}

func TestLocalMkdirAll(t *testing.T) {
	fsys := afero.NewMemMapFs()
	l := NewLocal(fsys, "/sync")

	require.NoError(t, l.MkdirAll(context.Background(), "Movies/Sub"))
	isDir, err := afero.IsDir(fsys, "/sync/Movies/Sub")
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestLocalMkdirAllReadOnly(t *testing.T) {
	l := NewLocal(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/sync")
	assert.Error(t, l.MkdirAll(context.Background(), "Movies"))
}

func TestLocalPublishCreatesParentAndReplaces(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/sync/Movies/a.mkv", []byte("stale"), 0o644))
	stage(t, fsys, "/staging/1-a.mkv", "fresh content")
	stage(t, fsys, "/staging/2-b.mkv", "bee")

	l := NewLocal(fsys, "/sync")
	ctx := context.Background()

	require.NoError(t, l.Publish(ctx, "/staging/1-a.mkv", "Movies/a.mkv"))
	require.NoError(t, l.Publish(ctx, "/staging/2-b.mkv", "Movies/New/b.mkv"))

	got, err := afero.ReadFile(fsys, "/sync/Movies/a.mkv")
	require.NoError(t, err)
	assert.Equal(t, "fresh content", string(got))

	got, err = afero.ReadFile(fsys, "/sync/Movies/New/b.mkv")
	require.NoError(t, err)
	assert.Equal(t, "bee", string(got))

	exists, _ := afero.Exists(fsys, "/staging/1-a.mkv")
	assert.False(t, exists)
}

func TestLocalPublishAcrossDevices(t *testing.T) {
	fsys := afero.NewMemMapFs()
	stage(t, fsys, "/staging/1-a.mkv", "payload")

	l := NewLocal(fsys, "/sync")
	l.rename = func(oldname, newname string) error {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: syscall.EXDEV}
	}

	require.NoError(t, l.Publish(context.Background(), "/staging/1-a.mkv", "a.mkv"))

	got, err := afero.ReadFile(fsys, "/sync/a.mkv")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	for _, p := range []string{"/staging/1-a.mkv", "/sync/a.mkv.putio-sync.tmp"} {
		exists, _ := afero.Exists(fsys, p)
		assert.False(t, exists, p)
	}
}

func TestLocalPublishMissingStagingFile(t *testing.T) {
	l := NewLocal(afero.NewMemMapFs(), "/sync")
	assert.Error(t, l.Publish(context.Background(), "/staging/nope", "a.mkv"))
}

func TestBucket(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	stage(t, fsys, "/staging/1-a.mkv", "object data")

	b := NewBucket(memblob.OpenBucket(nil), "mem://", fsys)
	defer b.Close()

	require.NoError(t, b.MkdirAll(ctx, "Movies"))

	_, ok, err := b.Size(ctx, "Movies/a.mkv")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Publish(ctx, "/staging/1-a.mkv", "Movies/a.mkv"))

	size, ok, err := b.Size(ctx, "Movies/a.mkv")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(len("object data")), size)

	data, err := b.bucket.ReadAll(ctx, "Movies/a.mkv")
	require.NoError(t, err)
	assert.Equal(t, "object data", string(data))

	exists, _ := afero.Exists(fsys, "/staging/1-a.mkv")
	assert.False(t, exists, "staged file should be removed after upload")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "Movies/a.mkv", key("Movies/a.mkv"))
	assert.Equal(t, "Movies/a.mkv", key("/Movies/./a.mkv"))
	assert.Equal(t, "a.mkv", key("../a.mkv"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()

	tgt, err := Open(ctx, "/data/sync", fsys)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, tgt)
	assert.Equal(t, "/data/sync", tgt.String())

	tgt, err = Open(ctx, "mem://", fsys)
	require.NoError(t, err)
	assert.IsType(t, &Bucket{}, tgt)
	require.NoError(t, tgt.Close())

	_, err = Open(ctx, "nosuchscheme://bucket", fsys)
	assert.Error(t, err)
}
