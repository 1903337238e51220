package remote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verygreenboi/putio-trauma/internal/remote"
	"github.com/verygreenboi/putio-trauma/internal/testutils"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		raw  string
		want remote.Kind
	}{
		{"FOLDER", remote.KindFolder},
		{"folder", remote.KindFolder},
		{"FILE", remote.KindFile},
		{"VIDEO", remote.KindFile},
		{"ARCHIVE", remote.KindFile},
		{"", remote.KindOther},
		{"SOMETHING_NEW", remote.KindOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, remote.ParseKind(tt.raw), "ParseKind(%q)", tt.raw)
	}
}

func TestEntrySize(t *testing.T) {
	size := int64(42)
	known := remote.Entry{Size: &size}
	unknown := remote.Entry{}

	n, ok := known.KnownSize()
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, int64(42), known.SizeOrUnknown())

	_, ok = unknown.KnownSize()
	assert.False(t, ok)
	assert.Equal(t, int64(-1), unknown.SizeOrUnknown())
}

func newTree(t *testing.T) *testutils.FakeRemote {
	fake := testutils.NewFakeRemote(t)
	fake.Folder(10, 0, "Movies")
	fake.File(11, 0, "notes.txt", []byte("hello"))
	fake.Folder(20, 10, "Sci-Fi")
	fake.Folder(30, 20, "Classics")
	return fake
}

func TestResolvePathRootMakesNoCalls(t *testing.T) {
	fake := newTree(t)

	for _, ref := range []string{"/", "root", ""} {
		entry, err := remote.ResolvePath(context.Background(), fake, ref)
		require.NoError(t, err)
		assert.Equal(t, remote.RootID, entry.ID)
	}
	assert.Equal(t, 0, fake.ListCalls())
}

func TestResolvePathOneListingPerSegment(t *testing.T) {
	fake := newTree(t)

	entry, err := remote.ResolvePath(context.Background(), fake, "/Movies/Sci-Fi/Classics")
	require.NoError(t, err)
	assert.Equal(t, int64(30), entry.ID)
	assert.Equal(t, "Classics", entry.Name)
	assert.Equal(t, 3, fake.ListCalls())
}

func TestResolvePathIgnoresEmptySegments(t *testing.T) {
	fake := newTree(t)

	entry, err := remote.ResolvePath(context.Background(), fake, "Movies//Sci-Fi/")
	require.NoError(t, err)
	assert.Equal(t, int64(20), entry.ID)
	assert.Equal(t, 2, fake.ListCalls())
}

func TestResolvePathMissingSegment(t *testing.T) {
	fake := newTree(t)

	_, err := remote.ResolvePath(context.Background(), fake, "/Movies/Drama")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrPathNotFound)
	assert.True(t, remote.IsNotFound(err))
}

func TestResolvePathSkipsFilesWithMatchingName(t *testing.T) {
	fake := newTree(t)

	_, err := remote.ResolvePath(context.Background(), fake, "/notes.txt")
	assert.ErrorIs(t, err, remote.ErrPathNotFound)
}

func TestResolvePathListingFailure(t *testing.T) {
	fake := newTree(t)
	fake.FailListing(10, errors.New("boom"))

	_, err := remote.ResolvePath(context.Background(), fake, "/Movies/Sci-Fi")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrUnavailable)
	assert.False(t, remote.IsNotFound(err))
}

func TestResolve(t *testing.T) {
	fake := newTree(t)
	ctx := context.Background()

	t.Run("root", func(t *testing.T) {
		folder, err := remote.Resolve(ctx, fake, "/")
		require.NoError(t, err)
		assert.Equal(t, remote.Folder{ID: remote.RootID}, folder)
	})

	t.Run("numeric id", func(t *testing.T) {
		folder, err := remote.Resolve(ctx, fake, "20")
		require.NoError(t, err)
		assert.Equal(t, remote.Folder{ID: 20, Name: "Sci-Fi"}, folder)
	})

	t.Run("numeric id of a file", func(t *testing.T) {
		_, err := remote.Resolve(ctx, fake, "11")
		assert.ErrorIs(t, err, remote.ErrNotFolder)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := remote.Resolve(ctx, fake, "999")
		assert.ErrorIs(t, err, remote.ErrNotFound)
		assert.NotErrorIs(t, err, remote.ErrUnavailable)
	})

	t.Run("path", func(t *testing.T) {
		folder, err := remote.Resolve(ctx, fake, "/Movies")
		require.NoError(t, err)
		assert.Equal(t, remote.Folder{ID: 10, Name: "Movies"}, folder)
	})
}

func TestErrorMatchesUnavailable(t *testing.T) {
	err := &remote.Error{Op: "list", ID: 7, Err: errors.New("connection reset")}
	assert.ErrorIs(t, err, remote.ErrUnavailable)
	assert.Contains(t, err.Error(), "list 7")
}
