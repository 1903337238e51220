// Package progress provides progress reporting for the download stage.
//
// This package outputs human-readable progress information to stderr,
// including completion percentage, transfer speed, and ETA. When the output
// is not a terminal only the header and the final status are printed.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalFiles: len(tasks),
//	    TotalBytes: knownBytes,
//	    Workers:    3,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	reporter.FileStarted()
//	reporter.BytesWritten(n)
//	reporter.FileCompleted()
//
// # Output Format
//
//	[putio-sync] Downloading to: /data/Movies
//	[putio-sync] Files: 42 | Known size: 18 GiB | Workers: 3
//	[putio-sync] Progress: 45.2% | 8.1 GiB / 18 GiB | Speed: 52 MiB/s | ETA: 3m 12s
//	[putio-sync] Files: 19 completed | 0 failed | 3 in-progress | 20 pending
package progress
