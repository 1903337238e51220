// Package testutils provides shared test infrastructure: an in-memory remote
// tree that is also served over a put.io-compatible HTTP API, and helpers for
// integration tests.
package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/verygreenboi/putio-trauma/internal/remote"
)

// Token is the OAuth token accepted by the fake API.
const Token = "test-token"

// FakeRemote is an in-memory remote tree. It implements remote.Client
// directly and serves the same tree through a put.io-compatible HTTP API.
type FakeRemote struct {
	mu        sync.Mutex
	entries   map[int64]remote.Entry
	children  map[int64][]int64
	data      map[int64][]byte
	listErr   map[int64]error
	failFetch map[int64]int
	listCalls map[int64]int
	downloads map[int64]int

	// PageSize is the number of entries returned per API listing page.
	PageSize int

	server *httptest.Server
}

// NewFakeRemote starts a fake remote. The HTTP server is closed when the test
// finishes.
func NewFakeRemote(t testing.TB) *FakeRemote {
	t.Helper()

	f := &FakeRemote{
		entries:   map[int64]remote.Entry{remote.RootID: {ID: remote.RootID, Name: "Your Files", Kind: remote.KindFolder}},
		children:  make(map[int64][]int64),
		data:      make(map[int64][]byte),
		listErr:   make(map[int64]error),
		failFetch: make(map[int64]int),
		listCalls: make(map[int64]int),
		downloads: make(map[int64]int),
		PageSize:  1000,
	}
	f.server = httptest.NewServer(f.handler())
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the API base URL, equivalent to https://api.put.io/v2.
func (f *FakeRemote) URL() string {
	return f.server.URL + "/v2"
}

// Folder adds a folder under parent.
func (f *FakeRemote) Folder(id, parent int64, name string) remote.Entry {
	return f.add(remote.Entry{ID: id, ParentID: parent, Name: name, Kind: remote.KindFolder}, nil)
}

// File adds a file with a known size under parent.
func (f *FakeRemote) File(id, parent int64, name string, data []byte) remote.Entry {
	size := int64(len(data))
	return f.add(remote.Entry{ID: id, ParentID: parent, Name: name, Kind: remote.KindFile, Size: &size}, data)
}

// FileWithoutSize adds a file whose size is not reported by listings.
func (f *FakeRemote) FileWithoutSize(id, parent int64, name string, data []byte) remote.Entry {
	return f.add(remote.Entry{ID: id, ParentID: parent, Name: name, Kind: remote.KindFile}, data)
}

// SetContent replaces a file's bytes and reported size.
func (f *FakeRemote) SetContent(id int64, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e := f.entries[id]
	if e.Size != nil {
		size := int64(len(data))
		e.Size = &size
	}
	f.entries[id] = e
	f.data[id] = data
}

// Link lists an existing entry under another parent as well, which lets tests
// build cycles.
func (f *FakeRemote) Link(parent, child int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children[parent] = append(f.children[parent], child)
}

// FailListing makes listings of folder id fail with err.
func (f *FakeRemote) FailListing(id int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr[id] = err
}

// FailDownload makes downloads of file id answer with the given status.
func (f *FakeRemote) FailDownload(id int64, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFetch[id] = status
}

// ListCalls returns the total number of listings served.
func (f *FakeRemote) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.listCalls {
		n += c
	}
	return n
}

// ListCallsFor returns how often folder id was listed.
func (f *FakeRemote) ListCallsFor(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[id]
}

// Downloads returns how often file id was downloaded.
func (f *FakeRemote) Downloads(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads[id]
}

// TotalDownloads returns the number of downloads served across all files.
func (f *FakeRemote) TotalDownloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.downloads {
		n += c
	}
	return n
}

// ListChildren implements remote.Lister.
func (f *FakeRemote) ListChildren(ctx context.Context, folderID int64) ([]remote.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls[folderID]++
	if err := f.listErr[folderID]; err != nil {
		return nil, &remote.Error{Op: "list", ID: folderID, Err: err}
	}
	return f.childrenLocked(folderID), nil
}

// GetEntry implements remote.Client.
func (f *FakeRemote) GetEntry(ctx context.Context, id int64) (remote.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return remote.Entry{}, &remote.Error{Op: "get", ID: id, Err: remote.ErrNotFound}
	}
	return e, nil
}

// DownloadURL implements remote.Client.
func (f *FakeRemote) DownloadURL(id int64) string {
	return fmt.Sprintf("%s/files/%d/download?oauth_token=%s", f.URL(), id, Token)
}

func (f *FakeRemote) add(e remote.Entry, data []byte) remote.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[e.ID] = e
	f.children[e.ParentID] = append(f.children[e.ParentID], e.ID)
	if data != nil {
		f.data[e.ID] = data
	}
	return e
}

func (f *FakeRemote) childrenLocked(folderID int64) []remote.Entry {
	ids := f.children[folderID]
	out := make([]remote.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.entries[id])
	}
	return out
}

func (f *FakeRemote) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/files/list", f.authorized(f.serveList))
	mux.HandleFunc("POST /v2/files/list/continue", f.authorized(f.serveContinue))
	mux.HandleFunc("GET /v2/files/{id}", f.authorized(f.serveGet))
	mux.HandleFunc("GET /v2/files/{id}/download", f.authorized(f.serveDownload))
	return mux
}

func (f *FakeRemote) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("oauth_token") != Token {
			writeAPIError(w, http.StatusUnauthorized, "invalid_grant")
			return
		}
		next(w, r)
	}
}

func (f *FakeRemote) serveList(w http.ResponseWriter, r *http.Request) {
	parentID, err := strconv.ParseInt(r.URL.Query().Get("parent_id"), 10, 64)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid parent_id")
		return
	}

	f.mu.Lock()
	f.listCalls[parentID]++
	listErr := f.listErr[parentID]
	_, known := f.entries[parentID]
	children := f.childrenLocked(parentID)
	parent := f.entries[parentID]
	f.mu.Unlock()

	if listErr != nil {
		writeAPIError(w, http.StatusServiceUnavailable, listErr.Error())
		return
	}
	if !known {
		writeAPIError(w, http.StatusNotFound, "NotFound")
		return
	}

	f.writePage(w, children, 0, parentID, &parent)
}

func (f *FakeRemote) serveContinue(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	var parentID int64
	var offset int
	if _, err := fmt.Sscanf(r.PostForm.Get("cursor"), "%d:%d", &parentID, &offset); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	f.mu.Lock()
	children := f.childrenLocked(parentID)
	f.mu.Unlock()

	f.writePage(w, children, offset, parentID, nil)
}

func (f *FakeRemote) writePage(w http.ResponseWriter, children []remote.Entry, offset int, parentID int64, parent *remote.Entry) {
	end := min(offset+f.PageSize, len(children))
	if offset > end {
		offset = end
	}

	files := make([]map[string]any, 0, end-offset)
	for _, e := range children[offset:end] {
		files = append(files, apiFile(e))
	}

	resp := map[string]any{
		"status": "OK",
		"files":  files,
		"total":  len(children),
		"cursor": nil,
	}
	if end < len(children) {
		resp["cursor"] = fmt.Sprintf("%d:%d", parentID, end)
	}
	if parent != nil {
		resp["parent"] = apiFile(*parent)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeRemote) serveGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeAPIError(w, http.StatusNotFound, "NotFound")
		return
	}

	f.mu.Lock()
	e, ok := f.entries[id]
	f.mu.Unlock()

	if !ok {
		writeAPIError(w, http.StatusNotFound, "NotFound")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "OK", "file": apiFile(e)})
}

func (f *FakeRemote) serveDownload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	data, ok := f.data[id]
	status := f.failFetch[id]
	f.downloads[id]++
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func apiFile(e remote.Entry) map[string]any {
	fileType := "FILE"
	switch e.Kind {
	case remote.KindFolder:
		fileType = "FOLDER"
	case remote.KindOther:
		fileType = "OTHER"
	}

	out := map[string]any{
		"id":         e.ID,
		"name":       e.Name,
		"file_type":  fileType,
		"parent_id":  e.ParentID,
		"created_at": "2024-05-01T10:20:30",
	}
	if e.Size != nil {
		out["size"] = *e.Size
	}
	if e.Kind != remote.KindFolder {
		out["content_type"] = contentType(e.Name)
	}
	return out
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".mkv"):
		return "video/x-matroska"
	case strings.HasSuffix(name, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"status":        "ERROR",
		"error_type":    http.StatusText(status),
		"error_message": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// GenerateTestData generates deterministic test data of the given size.
func GenerateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
