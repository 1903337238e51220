package putio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xhttp "github.com/verygreenboi/putio-trauma/internal/http"
	"github.com/verygreenboi/putio-trauma/internal/remote"
	"github.com/verygreenboi/putio-trauma/internal/testutils"
)

func testOptions(baseURL string) Options {
	opts := DefaultOptions()
	opts.BaseURL = baseURL
	opts.HTTP.RetryAttempts = 1
	opts.HTTP.RetryBackoff = time.Millisecond
	opts.HTTP.RetryMaxBackoff = time.Millisecond
	return opts
}

func TestDownloadURL(t *testing.T) {
	c := NewClient("test_token", DefaultOptions())
	assert.Equal(t, "https://api.put.io/v2/files/123/download?oauth_token=test_token", c.DownloadURL(123))
}

func TestListChildren(t *testing.T) {
	fake := testutils.NewFakeRemote(t)
	fake.Folder(1, 0, "Movies")
	fake.File(2, 0, "readme.txt", []byte("hi"))
	fake.FileWithoutSize(3, 0, "stream.mkv", []byte("data"))

	c := NewClient(testutils.Token, testOptions(fake.URL()))
	entries, err := c.ListChildren(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, "Movies", entries[0].Name)
	assert.Equal(t, remote.KindFolder, entries[0].Kind)

	assert.Equal(t, remote.KindFile, entries[1].Kind)
	size, ok := entries[1].KnownSize()
	assert.True(t, ok)
	assert.Equal(t, int64(2), size)
	assert.Equal(t, "text/plain", entries[1].ContentType)
	require.NotNil(t, entries[1].CreatedAt)
	assert.Equal(t, 2024, entries[1].CreatedAt.Year())

	_, ok = entries[2].KnownSize()
	assert.False(t, ok, "missing size must stay unknown")
}

func TestListChildrenFollowsCursor(t *testing.T) {
	fake := testutils.NewFakeRemote(t)
	fake.PageSize = 2
	for i := int64(1); i <= 5; i++ {
		fake.File(i, 0, "file", []byte{byte(i)})
	}

	c := NewClient(testutils.Token, testOptions(fake.URL()))
	entries, err := c.ListChildren(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.ID)
	}
}

func TestListChildrenUnavailable(t *testing.T) {
	fake := testutils.NewFakeRemote(t)
	fake.Folder(1, 0, "Movies")
	fake.FailListing(1, errors.New("maintenance"))

	c := NewClient(testutils.Token, testOptions(fake.URL()))
	_, err := c.ListChildren(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrUnavailable)

	var rerr *remote.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "list", rerr.Op)
	assert.Equal(t, int64(1), rerr.ID)
}

func TestListChildrenBadToken(t *testing.T) {
	fake := testutils.NewFakeRemote(t)

	c := NewClient("wrong", testOptions(fake.URL()))
	_, err := c.ListChildren(context.Background(), 0)
	assert.ErrorIs(t, err, xhttp.ErrUnauthorized)
	assert.ErrorIs(t, err, remote.ErrUnavailable)
}

func TestListChildrenAPIErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ERROR","error_message":"quota exceeded"}`))
	}))
	defer server.Close()

	c := NewClient("t", testOptions(server.URL))
	_, err := c.ListChildren(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGetEntry(t *testing.T) {
	fake := testutils.NewFakeRemote(t)
	fake.Folder(7, 0, "Series")

	c := NewClient(testutils.Token, testOptions(fake.URL()))
	entry, err := c.GetEntry(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Series", entry.Name)
	assert.True(t, entry.IsFolder())
}

func TestGetEntryNotFound(t *testing.T) {
	fake := testutils.NewFakeRemote(t)

	c := NewClient(testutils.Token, testOptions(fake.URL()))
	_, err := c.GetEntry(context.Background(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.NotErrorIs(t, err, remote.ErrUnavailable)
}

func TestResolveThroughAPI(t *testing.T) {
	fake := testutils.NewFakeRemote(t)
	fake.Folder(10, 0, "Movies")
	fake.Folder(20, 10, "Sub")
	fake.File(21, 20, "a.mkv", []byte("a"))

	c := NewClient(testutils.Token, testOptions(fake.URL()))

	folder, err := remote.Resolve(context.Background(), c, "/Movies/Sub")
	require.NoError(t, err)
	assert.Equal(t, remote.Folder{ID: 20, Name: "Sub"}, folder)
	assert.Equal(t, 2, fake.ListCalls())

	_, err = remote.Resolve(context.Background(), c, "21")
	assert.ErrorIs(t, err, remote.ErrNotFolder)
}

func TestFileEntryOptionalFields(t *testing.T) {
	created := "2023-11-05T08:00:00"
	shared := true
	shot := "https://img/1.jpg"
	f := file{ID: 1, Name: "x", FileType: "VIDEO", CreatedAt: &created, IsShared: &shared, Screenshot: &shot}

	e := f.entry()
	assert.Equal(t, remote.KindFile, e.Kind)
	require.NotNil(t, e.CreatedAt)
	assert.Equal(t, time.November, e.CreatedAt.Month())
	require.NotNil(t, e.Shared)
	assert.True(t, *e.Shared)
	assert.Equal(t, shot, e.Screenshot)
	assert.Nil(t, e.Size)
}
