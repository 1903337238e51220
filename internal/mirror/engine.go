package mirror

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/verygreenboi/putio-trauma/internal/metrics"
	"github.com/verygreenboi/putio-trauma/internal/progress"
	"github.com/verygreenboi/putio-trauma/internal/remote"
	"github.com/verygreenboi/putio-trauma/internal/target"
)

// Options configures an Engine.
type Options struct {
	// Workers is the number of parallel downloads.
	// Default: 3
	Workers int

	// StagingDir is where per-run staging directories are created.
	// Default: os.TempDir()
	StagingDir string

	// DryRun stops after deciding what to download.
	DryRun bool

	// Logger receives run logs. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics records run counters. Optional.
	Metrics *metrics.Metrics

	// Progress is started for the download stage when set. It should be the
	// reporter the Fetcher feeds.
	Progress *progress.Reporter
}

// Report summarizes a sync run.
type Report struct {
	RunID string

	Discovered int
	Skipped    int
	Attempted  int
	Succeeded  int
	Failed     int

	// Bytes received for published files.
	Bytes int64

	// Failures lists every task that did not end up on the target.
	Failures []Outcome

	// Planned lists the tasks a dry run would download, in queue order.
	Planned []Task

	DryRun   bool
	Duration time.Duration
}

// Engine mirrors a remote folder onto a target.
type Engine struct {
	client  remote.Client
	fetcher Fetcher
	target  target.Target
	staging afero.Fs
	opts    Options
}

// New creates an engine. staging is the filesystem the fetcher writes to.
func New(client remote.Client, fetcher Fetcher, t target.Target, staging afero.Fs, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		client:  client,
		fetcher: fetcher,
		target:  t,
		staging: staging,
		opts:    opts,
	}
}

// Sync mirrors folder onto the target: it walks the remote tree, orders the
// files deepest first, drops the ones already present and downloads the
// rest. The returned error is fatal for the run; per-file failures are
// reported in the Report.
func (e *Engine) Sync(ctx context.Context, folder remote.Folder) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString(), DryRun: e.opts.DryRun}
	log := e.opts.Logger.With(zap.String("run_id", report.RunID))

	log.Info("sync started",
		zap.Int64("folder_id", folder.ID),
		zap.String("folder", folder.Name),
		zap.String("target", e.target.String()))

	err := e.sync(ctx, folder, report, log)
	report.Duration = time.Since(start)
	e.opts.Metrics.RunFinished(report.Duration, err == nil)
	if err != nil {
		log.Error("sync failed", zap.Error(err))
		return report, err
	}

	log.Info("sync finished",
		zap.Int("discovered", report.Discovered),
		zap.Int("skipped", report.Skipped),
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int64("bytes", report.Bytes),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (e *Engine) sync(ctx context.Context, folder remote.Folder, report *Report, log *zap.Logger) error {
	walkTarget := e.target
	if e.opts.DryRun {
		walkTarget = dryRunTarget{e.target}
	}
	traverser := NewTraverser(e.client, walkTarget, log, e.opts.Metrics)
	tasks, err := traverser.Traverse(ctx, folder.ID, folder.Name)
	if err != nil {
		return err
	}
	report.Discovered = len(tasks)

	SortTasks(tasks)

	pending, skipped := NewSkipPolicy(e.target, log).Filter(ctx, tasks)
	report.Skipped = len(skipped)
	e.opts.Metrics.FilesSkipped(len(skipped))

	if len(pending) == 0 {
		log.Info("everything is up to date", zap.Int("files", len(tasks)))
		return nil
	}

	if e.opts.DryRun {
		report.Planned = pending
		for _, task := range pending {
			log.Info("would download",
				zap.Int64("file_id", task.Entry.ID),
				zap.String("path", task.TargetPath),
				zap.Int64("size", task.Entry.SizeOrUnknown()))
		}
		return nil
	}

	if p := e.opts.Progress; p != nil {
		var known int64
		for _, task := range pending {
			if size, ok := task.Entry.KnownSize(); ok {
				known += size
			}
		}
		p.SetTotals(len(pending), known)
		p.Start()
		defer p.Stop()
	}

	scheduler := NewScheduler(e.client, e.fetcher, e.target, e.staging, SchedulerOptions{
		Workers:       e.opts.Workers,
		StagingRoot:   e.opts.StagingDir,
		StagingPrefix: "putio-sync-" + report.RunID[:8] + "-",
		Logger:        log,
		Metrics:       e.opts.Metrics,
	})
	outcomes, err := scheduler.Run(ctx, pending)
	if err != nil {
		return err
	}

	report.Attempted = len(outcomes)
	for _, out := range outcomes {
		if out.Status == StatusDownloaded {
			report.Succeeded++
			report.Bytes += out.Bytes
			continue
		}
		report.Failed++
		report.Failures = append(report.Failures, out)
	}
	return nil
}

// dryRunTarget leaves the target untouched while traversing.
type dryRunTarget struct {
	target.Target
}

func (dryRunTarget) MkdirAll(context.Context, string) error {
	return nil
}
