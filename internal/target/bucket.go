package target

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/afero"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// Bucket mirrors into an object store. Directories do not exist there, so
// MkdirAll is a no-op and every file becomes an object keyed by its path.
type Bucket struct {
	bucket  *blob.Bucket
	url     string
	staging afero.Fs
}

// OpenBucket opens the bucket at url. staging is the filesystem holding the
// staged downloads that Publish uploads.
func OpenBucket(ctx context.Context, url string, staging afero.Fs) (*Bucket, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return NewBucket(b, url, staging), nil
}

// NewBucket wraps an open bucket.
func NewBucket(b *blob.Bucket, url string, staging afero.Fs) *Bucket {
	return &Bucket{bucket: b, url: url, staging: staging}
}

func (b *Bucket) String() string {
	return b.url
}

func key(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// MkdirAll implements Target.
func (b *Bucket) MkdirAll(context.Context, string) error {
	return nil
}

// Size implements Target.
func (b *Bucket) Size(ctx context.Context, p string) (int64, bool, error) {
	attrs, err := b.bucket.Attributes(ctx, key(p))
	if gcerrors.Code(err) == gcerrors.NotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return attrs.Size, true, nil
}

// Publish implements Target. The object only becomes visible once the writer
// closes successfully; the staged file is removed afterwards.
func (b *Bucket) Publish(ctx context.Context, stagingPath, p string) error {
	in, err := b.staging.Open(stagingPath)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer in.Close()

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := b.bucket.NewWriter(wctx, key(p), nil)
	if err != nil {
		return fmt.Errorf("create object writer: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		// Cancelling before Close discards the partial object.
		cancel()
		w.Close()
		return fmt.Errorf("upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	in.Close()
	_ = b.staging.Remove(stagingPath)
	return nil
}

// Close implements Target.
func (b *Bucket) Close() error {
	return b.bucket.Close()
}
