package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verygreenboi/putio-trauma/internal/config"
	"github.com/verygreenboi/putio-trauma/internal/downloader"
	xhttp "github.com/verygreenboi/putio-trauma/internal/http"
	"github.com/verygreenboi/putio-trauma/internal/logging"
	"github.com/verygreenboi/putio-trauma/internal/metrics"
	"github.com/verygreenboi/putio-trauma/internal/mirror"
	"github.com/verygreenboi/putio-trauma/internal/progress"
	"github.com/verygreenboi/putio-trauma/internal/putio"
	"github.com/verygreenboi/putio-trauma/internal/remote"
	"github.com/verygreenboi/putio-trauma/internal/target"
)

type syncCmd struct {
	stdout io.Writer
	stderr io.Writer

	configPath  string
	flags       config.Config
	progress    bool
	dryRun      bool
	failOnError bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &syncCmd{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "putio-sync [flags] <remote-folder> <destination>",
		Short: "Mirror a put.io folder into a local directory or bucket",
		Long: `Mirror a put.io folder into a local directory or bucket.

<remote-folder> is "/" for the account root, a numeric folder id, or a
folder path such as "Movies/2024". <destination> is a local directory or a
bucket URL (s3://, file://, mem://).

Files whose size already matches the remote are skipped, so an interrupted
run can simply be started again.

The API token is read from PUTIO_TOKEN.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return &usageError{err: err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("progress") {
				c.flags.Progress = &c.progress
			}
			return c.run(cmd.Context(), args[0], args[1])
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	f := cmd.Flags()
	f.StringVar(&c.configPath, "config", "", "Config file (default "+config.DefaultPath+" if present)")
	f.IntVarP(&c.flags.Workers, "workers", "w", 0, "Number of parallel downloads (default 3)")
	f.StringVar(&c.flags.StagingDir, "staging-dir", "", "Directory for in-flight downloads (default system temp dir)")
	f.StringVar(&c.flags.APIURL, "api-url", "", "put.io API base URL")
	f.Float64Var(&c.flags.RequestsPerSecond, "requests-per-second", 0, "Limit API requests per second (0 = unlimited)")
	f.BoolVar(&c.progress, "progress", false, "Show progress output (default when stderr is a terminal; --progress=false disables it)")
	f.StringVar(&c.flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&c.flags.LogFormat, "log-format", "", "Log format: console, json")
	f.StringVar(&c.flags.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	f.BoolVar(&c.dryRun, "dry-run", false, "List what would be downloaded without downloading or creating directories")
	f.BoolVar(&c.failOnError, "fail-on-error", false, "Exit non-zero when any download fails")

	return cmd
}

func (c *syncCmd) loadConfig() (config.Config, error) {
	var cfg config.Config
	var err error
	if c.configPath != "" {
		cfg, err = config.LoadFromFile(c.configPath)
	} else {
		cfg, err = config.LoadDefaultFile()
	}
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	cfg = cfg.Merge(c.flags)
	if err := cfg.Validate(); err != nil {
		if err == config.ErrMissingToken {
			return config.Config{}, err
		}
		return config.Config{}, &usageError{err: err}
	}
	return cfg, nil
}

func (c *syncCmd) run(parent context.Context, ref, dest string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return &usageError{err: err}
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiHTTP := xhttp.Options{
		MaxIdleConnsPerHost: cfg.Workers * 2,
		Timeout:             30 * time.Second,
		RetryAttempts:       cfg.Retry.Attempts,
		RetryBackoff:        cfg.Retry.Backoff,
		RetryMaxBackoff:     cfg.Retry.MaxBackoff,
		RequestsPerSecond:   cfg.RequestsPerSecond,
		UserAgent:           "putio-sync/" + version,
	}
	client := putio.NewClient(cfg.Token, putio.Options{
		BaseURL: cfg.APIURL,
		PerPage: cfg.PerPage,
		HTTP:    apiHTTP,
		Logger:  log.Named("putio"),
	})

	folder, err := remote.Resolve(ctx, client, ref)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", ref, err)
	}

	staging := afero.NewOsFs()
	tgt, err := target.Open(ctx, dest, staging)
	if err != nil {
		return &mirror.LocalIOError{Op: "open", Path: dest, Err: err}
	}
	defer tgt.Close()

	name := folder.Name
	if folder.ID == remote.RootID {
		name = "/"
	}
	fmt.Fprintf(c.stderr, "[putio-sync] Syncing %s (id %d) to %s\n", name, folder.ID, tgt)

	var reporter *progress.Reporter
	if cfg.ShowProgress(progress.IsTerminal(c.stderr)) {
		reporter = progress.NewReporter(progress.Options{
			Workers:     cfg.Workers,
			Output:      c.stderr,
			Destination: tgt.String(),
		})
	}

	// Downloads go to signed URLs and are not counted against the API rate.
	downloadHTTP := apiHTTP
	downloadHTTP.Timeout = 0
	downloadHTTP.RequestsPerSecond = 0
	fetcher := downloader.New(staging, downloader.Options{
		BufferSize:  int(cfg.BufferSize),
		Progress:    reporter,
		HTTPOptions: downloadHTTP,
	})

	m := metrics.New()
	engine := mirror.New(client, fetcher, tgt, staging, mirror.Options{
		Workers:    cfg.Workers,
		StagingDir: cfg.StagingDir,
		DryRun:     c.dryRun,
		Logger:     log,
		Metrics:    m,
		Progress:   reporter,
	})

	report, syncErr := engine.Sync(ctx, folder)

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn("failed to write metrics", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}

	if syncErr == nil {
		c.printReport(report)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(c.stderr, "[putio-sync] Interrupted; run again to resume")
		return ctx.Err()
	}
	if syncErr != nil {
		return syncErr
	}
	if report.Failed > 0 && c.failOnError {
		return errDownloadsFailed
	}
	return nil
}

func (c *syncCmd) printReport(r *mirror.Report) {
	if r.DryRun {
		for _, task := range r.Planned {
			size := "unknown size"
			if n, ok := task.Entry.KnownSize(); ok {
				size = progress.FormatBytes(n)
			}
			fmt.Fprintf(c.stdout, "%s\t%s\n", task.TargetPath, size)
		}
		fmt.Fprintf(c.stderr, "[putio-sync] Dry run: %d of %d files would be downloaded (%d up to date)\n",
			len(r.Planned), r.Discovered, r.Skipped)
		return
	}

	for _, out := range r.Failures {
		fmt.Fprintf(c.stderr, "[putio-sync] Failed: %s (%s): %v\n", out.Task.TargetPath, out.Status, out.Err)
	}
	fmt.Fprintf(c.stderr, "[putio-sync] Files: %d found | %d up to date | %d downloaded | %d failed\n",
		r.Discovered, r.Skipped, r.Succeeded, r.Failed)
	fmt.Fprintf(c.stderr, "[putio-sync] Transferred %s in %s\n",
		progress.FormatBytes(r.Bytes), progress.FormatDuration(r.Duration))
}
