// Package http provides the HTTP client shared by the put.io API client and
// the file fetcher.
//
// This package handles:
//   - Connection pooling
//   - Retry with exponential backoff on transport errors, 429 and 5xx
//   - Optional client-side rate limiting
//   - Mapping of 401/403/404 to sentinel errors
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    RetryAttempts:     5,
//	    RetryBackoff:      time.Second,
//	    RetryMaxBackoff:   30 * time.Second,
//	    RequestsPerSecond: 8,
//	})
//
//	var page listResponse
//	err := client.GetJSON(ctx, apiURL, &page)
//
//	resp, err := client.Get(ctx, downloadURL)
//	defer resp.Body.Close()
package http
