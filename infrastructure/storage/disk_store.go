package storage

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DiskStore keeps blobs as plain files under a single directory.
type DiskStore struct {
	root string
	log  *slog.Logger
}

func NewDiskStore(root string, log *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", root, err)
	}
	return &DiskStore{root: root, log: log}, nil
}

// Put writes to a temporary file first so a reader never sees a partial blob.
func (d *DiskStore) Put(ctx context.Context, name string, r io.Reader, _ string) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(d.root, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.root, name)); err != nil {
		return n, fmt.Errorf("rename %s: %w", name, err)
	}
	return n, nil
}

func (d *DiskStore) Open(_ context.Context, name string) (io.ReadCloser, contract.BlobInfo, error) {
	if err := checkName(name); err != nil {
		return nil, contract.BlobInfo{}, err
	}
	f, err := os.Open(filepath.Join(d.root, name))
	if goerrors.Is(err, fs.ErrNotExist) {
		return nil, contract.BlobInfo{}, fmt.Errorf("%w: %s", errors.ErrBlobNotFound, name)
	}
	if err != nil {
		return nil, contract.BlobInfo{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, contract.BlobInfo{}, err
	}
	return f, contract.BlobInfo{
		Name:        name,
		Size:        st.Size(),
		ContentType: contentTypeOf(name),
		ModTime:     st.ModTime(),
	}, nil
}

// Delete is a no-op for a missing blob.
func (d *DiskStore) Delete(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(d.root, name))
	if err != nil && !goerrors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ctxReader stops a long copy once the request is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
