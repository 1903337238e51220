package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.FolderListed()
	m.FolderListed()
	m.FilesDiscovered(5)
	m.FilesSkipped(2)
	m.Download(StatusDownloaded, 100)
	m.Download(StatusDownloaded, 50)
	m.Download(StatusFailed, 999)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.foldersListed))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.filesDiscovered))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.filesSkipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.downloads.WithLabelValues(StatusDownloaded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.downloads.WithLabelValues(StatusFailed)))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.downloadedBytes), "failed downloads do not count bytes")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.FolderListed()
	m.FilesDiscovered(1)
	m.FilesSkipped(1)
	m.Download(StatusDownloaded, 1)
	m.RunFinished(time.Second, true)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.FilesDiscovered(3)
	m.RunFinished(1500*time.Millisecond, true)

	path := filepath.Join(t.TempDir(), "putio_sync.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "putio_sync_files_discovered_total 3")
	assert.Contains(t, text, "putio_sync_run_duration_seconds 1.5")
	assert.Contains(t, text, "putio_sync_last_run_success 1")
}

func TestWriteTextfileBadPath(t *testing.T) {
	m := New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}
