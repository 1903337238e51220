package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alitto/pond/v2"
	"github.com/spf13/afero"

	xhttp "github.com/verygreenboi/putio-trauma/internal/http"
	"github.com/verygreenboi/putio-trauma/internal/progress"
)

// DefaultWorkers is the number of files fetched at the same time.
const DefaultWorkers = 3

// partSuffix marks a staging file that is still being written.
const partSuffix = ".part"

// ErrSizeMismatch is returned when the number of bytes received differs from
// the expected size.
var ErrSizeMismatch = errors.New("downloader: size mismatch")

// Options configures the downloader.
type Options struct {
	// BufferSize is the copy buffer used per download.
	// Default: 1 MiB
	BufferSize int

	// Progress is an optional progress reporter.
	Progress *progress.Reporter

	// HTTPOptions configures the HTTP client.
	HTTPOptions xhttp.Options
}

// Request describes one file to fetch into the staging directory.
type Request struct {
	// URL to download from.
	URL string

	// Name of the staging file. It must be a plain file name.
	Name string

	// ExpectedSize is the size the remote reported, or -1 if unknown.
	ExpectedSize int64
}

// Result is the outcome of one Request.
type Result struct {
	Request

	// Path of the staging file. Set only on success.
	Path string

	// Bytes received.
	Bytes int64

	Err error
}

// Error wraps a failed fetch.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Downloader fetches files over HTTP into a staging directory.
type Downloader struct {
	client *xhttp.Client
	fs     afero.Fs
	opts   Options
}

// New creates a downloader that writes through fs.
func New(fs afero.Fs, opts Options) *Downloader {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1 << 20
	}
	if opts.HTTPOptions.MaxIdleConnsPerHost == 0 {
		opts.HTTPOptions = xhttp.DefaultOptions()
	}

	return &Downloader{
		client: xhttp.NewClient(opts.HTTPOptions),
		fs:     fs,
		opts:   opts,
	}
}

// FetchAll downloads every request into stagingDir using at most concurrency
// parallel transfers. Requests are submitted in order; results are returned
// index-aligned with reqs. A failed request never stops the others. The only
// returned error is a failure to create stagingDir.
func (d *Downloader) FetchAll(ctx context.Context, reqs []Request, concurrency int, stagingDir string) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultWorkers
	}

	if err := d.fs.MkdirAll(stagingDir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	results := make([]Result, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}

	pool := pond.NewPool(concurrency)
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for i, req := range reqs {
		group.Submit(func() {
			results[i] = d.fetch(ctx, req, stagingDir)
		})
	}
	// Wait only reports task panics.
	if err := group.Wait(); err != nil {
		return results, fmt.Errorf("download pool: %w", err)
	}

	return results, nil
}

// fetch downloads a single request, reporting progress.
func (d *Downloader) fetch(ctx context.Context, req Request, stagingDir string) Result {
	res := Result{Request: req}

	if err := ctx.Err(); err != nil {
		res.Err = &Error{Name: req.Name, Err: err}
		return res
	}

	reporter := d.opts.Progress
	if reporter != nil {
		reporter.FileStarted()
	}

	path := filepath.Join(stagingDir, req.Name)
	n, err := d.fetchTo(ctx, req, path)
	res.Bytes = n
	if err != nil {
		if reporter != nil {
			reporter.FileFailed()
		}
		res.Err = &Error{Name: req.Name, Err: err}
		return res
	}

	if reporter != nil {
		reporter.FileCompleted()
	}
	res.Path = path
	return res
}

// fetchTo streams the response body into path+".part" and renames it to path
// once the byte count checks out. A failed transfer leaves nothing behind.
func (d *Downloader) fetchTo(ctx context.Context, req Request, path string) (int64, error) {
	resp, err := d.client.Get(ctx, req.URL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	part := path + partSuffix
	f, err := d.fs.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create staging file: %w", err)
	}

	w := &countingWriter{w: f, reporter: d.opts.Progress}
	_, copyErr := io.CopyBuffer(w, resp.Body, make([]byte, d.opts.BufferSize))
	closeErr := f.Close()

	n := w.n
	switch {
	case copyErr != nil:
		err = fmt.Errorf("write staging file: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close staging file: %w", closeErr)
	case req.ExpectedSize >= 0 && n != req.ExpectedSize:
		err = fmt.Errorf("%w: got %d bytes, expected %d", ErrSizeMismatch, n, req.ExpectedSize)
	case resp.ContentLength >= 0 && n != resp.ContentLength:
		err = fmt.Errorf("%w: got %d bytes, server announced %d", ErrSizeMismatch, n, resp.ContentLength)
	}
	if err != nil {
		_ = d.fs.Remove(part)
		return n, err
	}

	if err := d.fs.Rename(part, path); err != nil {
		_ = d.fs.Remove(part)
		return n, fmt.Errorf("finalize staging file: %w", err)
	}
	return n, nil
}

// countingWriter counts bytes and feeds them to the progress reporter.
type countingWriter struct {
	w        io.Writer
	n        int64
	reporter *progress.Reporter
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if c.reporter != nil && n > 0 {
		c.reporter.BytesWritten(int64(n))
	}
	return n, err
}
