package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/verygreenboi/putio-trauma/internal/downloader"
	"github.com/verygreenboi/putio-trauma/internal/metrics"
	"github.com/verygreenboi/putio-trauma/internal/target"
)

// maxStagingName bounds staging file names below common filesystem limits.
const maxStagingName = 200

// errNotStaged is reported when a fetch left no staging file without saying
// why.
var errNotStaged = errors.New("mirror: staging file missing after fetch")

// Fetcher downloads a batch of requests into a staging directory. Results are
// index-aligned with the requests.
type Fetcher interface {
	FetchAll(ctx context.Context, reqs []downloader.Request, concurrency int, stagingDir string) ([]downloader.Result, error)
}

// URLResolver maps a remote file id to its download URL.
type URLResolver interface {
	DownloadURL(id int64) string
}

// Status is the outcome of a download task.
type Status int

const (
	// StatusDownloaded means the file was fetched and published.
	StatusDownloaded Status = iota
	// StatusNotFetched means the fetch did not produce a staging file.
	StatusNotFetched
	// StatusFailed means the file was fetched but could not be published.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return metrics.StatusDownloaded
	case StatusNotFetched:
		return metrics.StatusNotFetched
	default:
		return metrics.StatusFailed
	}
}

// Outcome is the result of one task.
type Outcome struct {
	Task   Task
	Status Status
	Bytes  int64
	Err    error
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// Workers is the number of parallel downloads.
	// Default: 3
	Workers int

	// StagingRoot is where per-run staging directories are created.
	// Default: os.TempDir()
	StagingRoot string

	// StagingPrefix names the per-run staging directory.
	// Default: "putio-sync-"
	StagingPrefix string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Scheduler fetches tasks into a private staging directory and publishes
// each completed file onto the target.
type Scheduler struct {
	urls    URLResolver
	fetcher Fetcher
	target  target.Target
	staging afero.Fs
	opts    SchedulerOptions
}

// NewScheduler creates a scheduler. staging is the filesystem holding the
// staging directory; it must be the one the fetcher writes to.
func NewScheduler(urls URLResolver, f Fetcher, t target.Target, staging afero.Fs, opts SchedulerOptions) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = downloader.DefaultWorkers
	}
	if opts.StagingRoot == "" {
		opts.StagingRoot = os.TempDir()
	}
	if opts.StagingPrefix == "" {
		opts.StagingPrefix = "putio-sync-"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scheduler{urls: urls, fetcher: f, target: t, staging: staging, opts: opts}
}

// Run downloads tasks in queue order with bounded concurrency. Per-task
// failures are reported in the outcomes, which are index-aligned with tasks.
// The only returned error is a failure to set up the staging directory.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) ([]Outcome, error) {
	log := s.opts.Logger

	if err := s.staging.MkdirAll(s.opts.StagingRoot, 0o755); err != nil {
		return nil, &LocalIOError{Op: "create staging root", Path: s.opts.StagingRoot, Err: err}
	}
	dir, err := afero.TempDir(s.staging, s.opts.StagingRoot, s.opts.StagingPrefix)
	if err != nil {
		return nil, &LocalIOError{Op: "create staging directory", Path: s.opts.StagingRoot, Err: err}
	}
	defer func() {
		if err := s.staging.RemoveAll(dir); err != nil {
			log.Warn("could not remove staging directory", zap.String("path", dir), zap.Error(err))
		}
	}()

	reqs := make([]downloader.Request, len(tasks))
	for i, task := range tasks {
		reqs[i] = downloader.Request{
			URL:          s.urls.DownloadURL(task.Entry.ID),
			Name:         stagingName(task),
			ExpectedSize: task.Entry.SizeOrUnknown(),
		}
	}

	log.Info("downloading",
		zap.Int("files", len(tasks)),
		zap.Int("workers", s.opts.Workers),
		zap.String("staging", dir))

	results, err := s.fetcher.FetchAll(ctx, reqs, s.opts.Workers, dir)
	if err != nil && results == nil {
		return nil, &LocalIOError{Op: "stage downloads", Path: dir, Err: err}
	}
	if err != nil {
		log.Error("download pool reported an error", zap.Error(err))
	}

	outcomes := make([]Outcome, len(tasks))
	for i, task := range tasks {
		var res downloader.Result
		if i < len(results) {
			res = results[i]
		}
		outcomes[i] = s.publish(ctx, task, filepath.Join(dir, reqs[i].Name), res)
		s.opts.Metrics.Download(outcomes[i].Status.String(), outcomes[i].Bytes)
	}

	return outcomes, nil
}

// publish moves a staged file onto the target. The staging file's presence
// is what decides whether the fetch succeeded.
func (s *Scheduler) publish(ctx context.Context, task Task, stagingPath string, res downloader.Result) Outcome {
	log := s.opts.Logger.With(
		zap.Int64("file_id", task.Entry.ID),
		zap.String("path", task.TargetPath))

	out := Outcome{Task: task, Bytes: res.Bytes}

	staged, err := afero.Exists(s.staging, stagingPath)
	if err != nil || !staged {
		out.Status = StatusNotFetched
		out.Err = res.Err
		if out.Err == nil {
			out.Err = errNotStaged
		}
		log.Warn("download failed", zap.Error(out.Err))
		return out
	}

	if err := s.target.Publish(ctx, stagingPath, task.TargetPath); err != nil {
		out.Status = StatusFailed
		out.Err = &LocalIOError{Op: "publish", Path: task.TargetPath, Err: err}
		log.Error("could not publish file", zap.Error(err))
		return out
	}

	out.Status = StatusDownloaded
	log.Info("downloaded", zap.Int64("bytes", res.Bytes))
	return out
}

// stagingName is unique per remote file because it starts with the id.
func stagingName(task Task) string {
	name := fmt.Sprintf("%d-%s", task.Entry.ID, safeName(task.Entry.Name))
	if len(name) <= maxStagingName {
		return name
	}
	name = name[:maxStagingName]
	for !utf8.ValidString(name) {
		name = name[:len(name)-1]
	}
	return strings.TrimSpace(name)
}
