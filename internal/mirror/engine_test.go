package mirror

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verygreenboi/putio-trauma/internal/downloader"
	xhttp "github.com/verygreenboi/putio-trauma/internal/http"
	"github.com/verygreenboi/putio-trauma/internal/metrics"
	"github.com/verygreenboi/putio-trauma/internal/progress"
	"github.com/verygreenboi/putio-trauma/internal/remote"
	"github.com/verygreenboi/putio-trauma/internal/testutils"
)

func TestSyncMovies(t *testing.T) {
	env := newTestEnv(t)
	moviesTree(env.fake)

	report, err := env.engine(t, Options{}).Sync(context.Background(), remote.Folder{ID: 10, Name: "Movies"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Discovered)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, int64(300), report.Bytes)
	assert.NotEmpty(t, report.RunID)

	assert.Equal(t, string(testutils.GenerateTestData(100)), env.read(t, "Movies/a.mkv"))
	assert.Equal(t, string(testutils.GenerateTestData(200)), env.read(t, "Movies/Sub/b.mkv"))
}

func TestSyncIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	moviesTree(env.fake)
	folder := remote.Folder{ID: 10, Name: "Movies"}

	_, err := env.engine(t, Options{}).Sync(context.Background(), folder)
	require.NoError(t, err)
	require.Equal(t, 2, env.fake.TotalDownloads())

	report, err := env.engine(t, Options{}).Sync(context.Background(), folder)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Discovered)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 2, env.fake.TotalDownloads(), "second run downloads nothing")

	exists, _ := afero.DirExists(env.fs, stagingRoot)
	if exists {
		entries, err := afero.ReadDir(env.fs, stagingRoot)
		require.NoError(t, err)
		assert.Empty(t, entries, "an up to date run creates no staging directory")
	}
}

func TestSyncRedownloadsOnSizeMismatch(t *testing.T) {
	env := newTestEnv(t)
	moviesTree(env.fake)
	folder := remote.Folder{ID: 10, Name: "Movies"}

	_, err := env.engine(t, Options{}).Sync(context.Background(), folder)
	require.NoError(t, err)

	env.fake.SetContent(13, []byte("a different, longer version of b.mkv"))
	report, err := env.engine(t, Options{}).Sync(context.Background(), folder)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, env.fake.Downloads(13))
	assert.Equal(t, 1, env.fake.Downloads(11))
	assert.Equal(t, "a different, longer version of b.mkv", env.read(t, "Movies/Sub/b.mkv"))
}

func TestSyncUnknownSizeIsAlwaysDownloaded(t *testing.T) {
	env := newTestEnv(t)
	env.fake.FileWithoutSize(1, 0, "stream.bin", []byte("live"))

	for i := 0; i < 2; i++ {
		report, err := env.engine(t, Options{}).Sync(context.Background(), remote.Folder{ID: remote.RootID})
		require.NoError(t, err)
		assert.Equal(t, 0, report.Skipped)
		assert.Equal(t, 1, report.Succeeded)
	}
	assert.Equal(t, 2, env.fake.Downloads(1))
	assert.Equal(t, "live", env.read(t, "stream.bin"))
}

func TestSyncRootMirrorsIntoDestination(t *testing.T) {
	env := newTestEnv(t)
	moviesTree(env.fake)
	env.fake.File(1, 0, "readme.txt", []byte("hello"))

	report, err := env.engine(t, Options{}).Sync(context.Background(), remote.Folder{ID: remote.RootID})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, "hello", env.read(t, "readme.txt"))
	assert.True(t, env.exists("Movies/Sub/b.mkv"))
}

func TestSyncPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	moviesTree(env.fake)
	env.fake.FailDownload(13, http.StatusBadGateway)

	m := metrics.New()
	report, err := env.engine(t, Options{Metrics: m}).Sync(context.Background(), remote.Folder{ID: 10, Name: "Movies"})
	require.NoError(t, err, "per-file failures are not fatal")

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "Movies/Sub/b.mkv", report.Failures[0].Task.TargetPath)
	assert.Equal(t, StatusNotFetched, report.Failures[0].Status)

	assert.True(t, env.exists("Movies/a.mkv"))
	assert.False(t, env.exists("Movies/Sub/b.mkv"))

	gathered, err := testutil.GatherAndCount(m.Registry(), "putio_sync_downloads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, gathered, "one series per outcome")
}

func TestSyncListingFailureIsFatal(t *testing.T) {
	env := newTestEnv(t)
	moviesTree(env.fake)
	env.fake.FailListing(12, errors.New("timeout"))

	report, err := env.engine(t, Options{}).Sync(context.Background(), remote.Folder{ID: 10, Name: "Movies"})
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrUnavailable)
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 0, env.fake.TotalDownloads())
}

func TestSyncDryRun(t *testing.T) {
	env := newTestEnv(t)
	moviesTree(env.fake)

	report, err := env.engine(t, Options{DryRun: true}).Sync(context.Background(), remote.Folder{ID: 10, Name: "Movies"})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, []string{"Movies/Sub/b.mkv", "Movies/a.mkv"}, paths(report.Planned))
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 0, env.fake.TotalDownloads())
	assert.False(t, env.exists("Movies"), "a dry run creates no directories")
}

func TestSyncDryRunReportsExistingFiles(t *testing.T) {
	env := newTestEnv(t)
	moviesTree(env.fake)
	folder := remote.Folder{ID: 10, Name: "Movies"}

	_, err := env.engine(t, Options{}).Sync(context.Background(), folder)
	require.NoError(t, err)
	env.fake.SetContent(11, []byte("changed"))

	report, err := env.engine(t, Options{DryRun: true}).Sync(context.Background(), folder)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"Movies/a.mkv"}, paths(report.Planned))
}

func TestSyncReportsProgress(t *testing.T) {
	env := newTestEnv(t)
	moviesTree(env.fake)

	var out bytes.Buffer
	interactive := false
	reporter := progress.NewReporter(progress.Options{Output: &out, Interactive: &interactive, Destination: "/sync"})

	httpOpts := xhttp.DefaultOptions()
	httpOpts.RetryAttempts = 0
	d := downloader.New(env.fs, downloader.Options{HTTPOptions: httpOpts, Progress: reporter})

	engine := New(env.fake, d, env.target, env.fs, Options{
		StagingDir: stagingRoot,
		Progress:   reporter,
	})
	_, err := engine.Sync(context.Background(), remote.Folder{ID: 10, Name: "Movies"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Files: 2 | Known size: 300 B")
	assert.Contains(t, out.String(), "Transferred: 300 B | Files: 2 completed | 0 failed")
}
