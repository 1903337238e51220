// Package downloader fetches remote files into a local staging directory.
//
// Each request is streamed into "<name>.part" and renamed to "<name>" only
// after the byte count matches the expected size and the announced
// Content-Length, so the presence of the staging file means the fetch
// succeeded.
//
// # Usage
//
//	d := downloader.New(afero.NewOsFs(), downloader.Options{Progress: reporter})
//	results, err := d.FetchAll(ctx, []downloader.Request{
//	    {URL: url, Name: "42-movie.mkv", ExpectedSize: 1 << 30},
//	}, 3, stagingDir)
//
// # Worker Pool
//
// Requests are submitted in order to a fixed-size worker pool and complete
// in any order. A failed request is recorded in its Result and never
// cancels the others. Cancelling the context aborts in-flight transfers and
// marks requests that have not started with the context error.
package downloader
