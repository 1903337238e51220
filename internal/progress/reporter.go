package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// Options configures the progress reporter.
type Options struct {
	// TotalFiles is the number of files queued for download.
	TotalFiles int

	// TotalBytes is the sum of the known file sizes. Files without a known
	// size do not contribute.
	TotalBytes int64

	// Workers is the number of parallel downloads.
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// Destination is the sync root being written (for display).
	Destination string

	// Interactive redraws the status lines in place. When false only the
	// header and the final status are printed.
	// Default: true when Output is a terminal.
	Interactive *bool
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts        Options
	interactive bool

	mu             sync.Mutex
	completedBytes atomic.Int64
	completedFiles atomic.Int32
	failedFiles    atomic.Int32
	inProgress     atomic.Int32
	startTime      time.Time
	lastUpdate     time.Time
	lastBytes      int64
	stopCh         chan struct{}
	doneCh         chan struct{}
	started        bool
	stopped        bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	interactive := IsTerminal(opts.Output)
	if opts.Interactive != nil {
		interactive = *opts.Interactive
	}

	return &Reporter{
		opts:        opts,
		interactive: interactive,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetTotals sets the number of files and known bytes queued. It must be
// called before Start.
func (r *Reporter) SetTotals(files int, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.TotalFiles = files
	r.opts.TotalBytes = bytes
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[putio-sync] Downloading to: %s\n", r.opts.Destination)
	fmt.Fprintf(r.opts.Output, "[putio-sync] Files: %d | Known size: %s | Workers: %d\n",
		r.opts.TotalFiles,
		formatBytes(r.opts.TotalBytes),
		r.opts.Workers,
	)

	go r.updateLoop()
}

// Stop stops the progress reporter and prints the final status.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// FileStarted marks a file as in progress.
func (r *Reporter) FileStarted() {
	r.inProgress.Add(1)
}

// BytesWritten records bytes written for an in-progress file.
func (r *Reporter) BytesWritten(n int64) {
	r.completedBytes.Add(n)
}

// FileCompleted marks a file as completed.
func (r *Reporter) FileCompleted() {
	r.completedFiles.Add(1)
	r.inProgress.Add(-1)
}

// FileFailed marks a file as failed (removes from in-progress).
func (r *Reporter) FileFailed() {
	r.failedFiles.Add(1)
	r.inProgress.Add(-1)
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			if r.interactive {
				r.printProgress()
			}
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	completed := r.completedBytes.Load()
	completedFiles := int(r.completedFiles.Load())
	failedFiles := int(r.failedFiles.Load())
	inProgress := int(r.inProgress.Load())

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(completed-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = completed

	var percent float64
	eta := "unknown"
	if r.opts.TotalBytes > 0 {
		percent = min(float64(completed)/float64(r.opts.TotalBytes)*100, 100)
		if speed > 0 && completed < r.opts.TotalBytes {
			remaining := float64(r.opts.TotalBytes - completed)
			eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
		} else if speed == 0 {
			eta = "calculating..."
		}
	}

	pending := max(r.opts.TotalFiles-completedFiles-failedFiles-inProgress, 0)

	fmt.Fprintf(r.opts.Output, "\r[putio-sync] Progress: %.1f%% | %s / %s | Speed: %s/s | ETA: %s    ",
		percent,
		formatBytes(completed),
		formatBytes(r.opts.TotalBytes),
		formatBytes(int64(speed)),
		eta,
	)
	fmt.Fprintf(r.opts.Output, "\n[putio-sync] Files: %d completed | %d failed | %d in-progress | %d pending    \033[A",
		completedFiles,
		failedFiles,
		inProgress,
		pending,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	completed := r.completedBytes.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(completed) / max(duration.Seconds(), 0.001)

	prefix := ""
	if r.interactive {
		prefix = "\r"
	}
	fmt.Fprintf(r.opts.Output, "%s[putio-sync] Transferred: %s | Files: %d completed | %d failed    \n",
		prefix,
		formatBytes(completed),
		r.completedFiles.Load(),
		r.failedFiles.Load(),
	)
	if r.interactive {
		fmt.Fprintf(r.opts.Output, "%60s\n", "")
	}
	fmt.Fprintf(r.opts.Output, "[putio-sync] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		formatBytes(int64(avgSpeed)),
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// FormatDuration is exported for use by other packages.
func FormatDuration(d time.Duration) string {
	return formatDuration(d)
}

// ParseBytes parses a human-readable byte string (e.g., "256MiB" or "1MB").
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}
	return int64(n), nil
}
