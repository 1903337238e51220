package putio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	xhttp "github.com/verygreenboi/putio-trauma/internal/http"
	"github.com/verygreenboi/putio-trauma/internal/remote"
)

const (
	// DefaultBaseURL is the put.io v2 API endpoint.
	DefaultBaseURL = "https://api.put.io/v2"

	// DefaultPerPage is the listing page size requested from the API.
	DefaultPerPage = 1000
)

// Options configures the put.io client.
type Options struct {
	// BaseURL of the API, without a trailing slash.
	// Default: DefaultBaseURL
	BaseURL string

	// PerPage is the number of entries requested per listing page.
	// Default: DefaultPerPage
	PerPage int

	// HTTP configures the underlying transport.
	HTTP xhttp.Options

	// Logger receives per-page debug output. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		BaseURL: DefaultBaseURL,
		PerPage: DefaultPerPage,
		HTTP:    xhttp.DefaultOptions(),
	}
}

// Client talks to the put.io REST API. It implements remote.Client.
type Client struct {
	http    *xhttp.Client
	baseURL string
	token   string
	perPage int
	log     *zap.Logger
}

var _ remote.Client = (*Client)(nil)

// NewClient creates a client authenticating with the given OAuth token.
func NewClient(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		http:    xhttp.NewClient(opts.HTTP),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   token,
		perPage: opts.PerPage,
		log:     opts.Logger,
	}
}

// ListChildren returns every direct child of the folder, following listing
// cursors until the API reports no further pages.
func (c *Client) ListChildren(ctx context.Context, folderID int64) ([]remote.Entry, error) {
	q := url.Values{}
	q.Set("parent_id", strconv.FormatInt(folderID, 10))
	q.Set("per_page", strconv.Itoa(c.perPage))

	var page listResponse
	if err := c.http.GetJSON(ctx, c.endpoint("/files/list", q), &page); err != nil {
		return nil, &remote.Error{Op: "list", ID: folderID, Err: err}
	}
	if err := page.err(); err != nil {
		return nil, &remote.Error{Op: "list", ID: folderID, Err: err}
	}

	entries := make([]remote.Entry, 0, len(page.Files))
	for _, f := range page.Files {
		entries = append(entries, f.entry())
	}

	pages := 1
	for page.Cursor != "" {
		form := url.Values{}
		form.Set("cursor", page.Cursor)
		form.Set("per_page", strconv.Itoa(c.perPage))

		page = listResponse{}
		if err := c.http.PostFormJSON(ctx, c.endpoint("/files/list/continue", nil), form, &page); err != nil {
			return nil, &remote.Error{Op: "list", ID: folderID, Err: err}
		}
		if err := page.err(); err != nil {
			return nil, &remote.Error{Op: "list", ID: folderID, Err: err}
		}
		for _, f := range page.Files {
			entries = append(entries, f.entry())
		}
		pages++
	}

	c.log.Debug("listed folder",
		zap.Int64("folder_id", folderID),
		zap.Int("entries", len(entries)),
		zap.Int("pages", pages))

	return entries, nil
}

// GetEntry returns the record of a single file or folder.
func (c *Client) GetEntry(ctx context.Context, id int64) (remote.Entry, error) {
	var resp getResponse
	err := c.http.GetJSON(ctx, c.endpoint("/files/"+strconv.FormatInt(id, 10), nil), &resp)
	if errors.Is(err, xhttp.ErrNotFound) {
		return remote.Entry{}, &remote.Error{Op: "get", ID: id, Err: fmt.Errorf("%w: %v", remote.ErrNotFound, err)}
	}
	if err != nil {
		return remote.Entry{}, &remote.Error{Op: "get", ID: id, Err: err}
	}
	if err := resp.err(); err != nil {
		return remote.Entry{}, &remote.Error{Op: "get", ID: id, Err: err}
	}
	if resp.File == nil {
		return remote.Entry{}, &remote.Error{Op: "get", ID: id, Err: remote.ErrNotFound}
	}
	return resp.File.entry(), nil
}

// DownloadURL returns the authenticated download URL of a file.
func (c *Client) DownloadURL(id int64) string {
	q := url.Values{}
	q.Set("oauth_token", c.token)
	return fmt.Sprintf("%s/files/%d/download?%s", c.baseURL, id, q.Encode())
}

func (c *Client) endpoint(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("oauth_token", c.token)
	return c.baseURL + path + "?" + q.Encode()
}

type status struct {
	Status       string `json:"status"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

func (s status) err() error {
	if !strings.EqualFold(s.Status, "ERROR") {
		return nil
	}
	msg := s.ErrorMessage
	if msg == "" {
		msg = s.ErrorType
	}
	return fmt.Errorf("api error: %s", msg)
}

type listResponse struct {
	status
	Files  []file `json:"files"`
	Parent *file  `json:"parent"`
	Total  int    `json:"total"`
	Cursor string `json:"cursor"`
}

type getResponse struct {
	status
	File *file `json:"file"`
}

type file struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	FileType    string  `json:"file_type"`
	ParentID    *int64  `json:"parent_id"`
	Size        *int64  `json:"size"`
	ContentType *string `json:"content_type"`
	CreatedAt   *string `json:"created_at"`
	IsShared    *bool   `json:"is_shared"`
	Screenshot  *string `json:"screenshot"`
}

// createdAtLayouts are tried in order; the API omits the zone.
var createdAtLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func (f file) entry() remote.Entry {
	e := remote.Entry{
		ID:     f.ID,
		Name:   f.Name,
		Kind:   remote.ParseKind(f.FileType),
		Size:   f.Size,
		Shared: f.IsShared,
	}
	if f.ParentID != nil {
		e.ParentID = *f.ParentID
	}
	if f.ContentType != nil {
		e.ContentType = *f.ContentType
	}
	if f.Screenshot != nil {
		e.Screenshot = *f.Screenshot
	}
	if f.CreatedAt != nil {
		for _, layout := range createdAtLayouts {
			if t, err := time.Parse(layout, *f.CreatedAt); err == nil {
				e.CreatedAt = &t
				break
			}
		}
	}
	return e
}
