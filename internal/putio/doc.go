// Package putio implements remote.Client on top of the put.io v2 REST API.
//
// Listings request large pages and follow the returned cursor through
// /files/list/continue until it is empty, so callers always receive the
// complete set of children. Requests authenticate with the oauth_token
// query parameter, which is also embedded in download URLs.
package putio
