package storage

import (
	"bytes"
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	goerrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// SetupTestDB initializes a temporary Badger instance for testing
func SetupTestDB(t *testing.T) (*badger.DB, func()) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)

	return db, func() {
		db.Close()
	}
}

func stores(t *testing.T) map[string]contract.BlobStore {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	disk, err := NewDiskStore(t.TempDir(), log)
	require.NoError(t, err)
	db, cleanup := SetupTestDB(t)
	t.Cleanup(cleanup)

	return map[string]contract.BlobStore{
		BackendDisk:   disk,
		BackendBadger: NewBadgerStore(db, log),
		BackendS3:     NewS3Store(newFakeS3(), "uploads", log),
	}
}

func TestBlobStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	// Spans several badger chunks
	content := bytes.Repeat([]byte("0123456789abcdef"), (5<<20)/32)

	for backend, store := range stores(t) {
		t.Run(backend, func(t *testing.T) {
			req := require.New(t)

			// Given a stored blob
			n, err := store.Put(ctx, "1714566600000-42.png", bytes.NewReader(content), "image/png")
			req.NoError(err)
			req.Equal(int64(len(content)), n)

			// When it is opened
			rc, info, err := store.Open(ctx, "1714566600000-42.png")
			req.NoError(err)
			got, err := io.ReadAll(rc)
			req.NoError(err)
			req.NoError(rc.Close())

			// Then the exact bytes and metadata come back
			req.Equal(content, got)
			req.Equal(int64(len(content)), info.Size)
			req.Equal("image/png", info.ContentType)
			req.Equal("1714566600000-42.png", info.Name)

			// When it is deleted, twice
			req.NoError(store.Delete(ctx, "1714566600000-42.png"))
			req.NoError(store.Delete(ctx, "1714566600000-42.png"))

			// Then it is gone
			_, _, err = store.Open(ctx, "1714566600000-42.png")
			req.ErrorIs(err, errors.ErrBlobNotFound)
		})
	}
}

func TestBlobStore_EmptyBlob(t *testing.T) {
	ctx := context.Background()
	for backend, store := range stores(t) {
		t.Run(backend, func(t *testing.T) {
			req := require.New(t)

			n, err := store.Put(ctx, "empty.txt", bytes.NewReader(nil), "text/plain")
			req.NoError(err)
			req.Zero(n)

			rc, info, err := store.Open(ctx, "empty.txt")
			req.NoError(err)
			defer rc.Close()
			req.Zero(info.Size)
		})
	}
}

func TestBlobStore_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	names := []string{"", ".", "..", ".hidden", "../secret", "a/b.png", `a\b.png`, "c:evil"}

	for backend, store := range stores(t) {
		t.Run(backend, func(t *testing.T) {
			req := require.New(t)
			for _, name := range names {
				_, err := store.Put(ctx, name, bytes.NewReader([]byte("x")), "")
				req.ErrorIs(err, errors.ErrBlobNotFound, name)

				_, _, err = store.Open(ctx, name)
				req.ErrorIs(err, errors.ErrBlobNotFound, name)
			}
		})
	}
}

func TestDiskStore_Hides_Temporary_Uploads(t *testing.T) {
	req := require.New(t)
	root := t.TempDir()
	store, err := NewDiskStore(root, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)

	// Given an upload still being written next to the blobs
	req.NoError(os.WriteFile(filepath.Join(root, ".upload-123456"), []byte("partial"), 0o600))

	// When it is requested by name
	_, _, err = store.Open(context.Background(), ".upload-123456")

	// Then it is not served
	req.ErrorIs(err, errors.ErrBlobNotFound)
}

func TestDiskStore_ContentTypeFromExtension(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store, err := NewDiskStore(t.TempDir(), log)
	req.NoError(err)

	// Given a pdf stored on disk
	_, err = store.Put(context.Background(), "doc.pdf", bytes.NewReader([]byte("%PDF-1.7")), "application/pdf")
	req.NoError(err)

	// Then its type is resolved from the extension on read
	rc, info, err := store.Open(context.Background(), "doc.pdf")
	req.NoError(err)
	defer rc.Close()
	req.Equal("application/pdf", info.ContentType)
}

func TestBadgerStore_CancelledContext(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	store := NewBadgerStore(db, logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given a cancelled request
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When a blob is written
	_, err := store.Put(ctx, "late.txt", bytes.NewReader([]byte("late")), "text/plain")

	// Then nothing becomes visible
	req.ErrorIs(err, context.Canceled)
	_, _, err = store.Open(context.Background(), "late.txt")
	req.ErrorIs(err, errors.ErrBlobNotFound)
}

func TestBadgerStore_List(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	store := NewBadgerStore(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx := context.Background()

	// Given two blobs, written out of order
	_, err := store.Put(ctx, "b.txt", bytes.NewReader([]byte("bb")), "text/plain")
	req.NoError(err)
	_, err = store.Put(ctx, "a.png", bytes.NewReader([]byte("a")), "image/png")
	req.NoError(err)

	// When listing
	infos, err := store.List(ctx)
	req.NoError(err)

	// Then both are returned by name, chunks excluded
	req.Len(infos, 2)
	req.Equal("a.png", infos[0].Name)
	req.Equal(int64(1), infos[0].Size)
	req.Equal("b.txt", infos[1].Name)
	req.Equal("text/plain", infos[1].ContentType)
}

func TestBadgerStore_Chunk_Below_Value_Threshold(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	store := NewBadgerStore(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx := context.Background()

	for _, size := range []int{int(db.Opts().ValueThreshold), 3 << 20} {
		// Given a blob sized on the in-memory value threshold
		content := bytes.Repeat([]byte{0xab}, size)

		// When it is stored and read back
		_, err := store.Put(ctx, "one-mib.png", bytes.NewReader(content), "image/png")
		req.NoError(err, size)
		rc, info, err := store.Open(ctx, "one-mib.png")
		req.NoError(err, size)
		got, err := io.ReadAll(rc)
		req.NoError(err)

		// Then every byte survives
		req.Equal(int64(size), info.Size)
		req.Equal(content, got)
		req.NoError(store.Delete(ctx, "one-mib.png"))
	}
}

func TestBadgerStore_Failed_Put_Leaves_No_Chunks(t *testing.T) {
	req := require.New(t)
	// A small memtable makes the write batch commit every couple of chunks
	opts := badger.DefaultOptions("").WithInMemory(true).
		WithMemTableSize(4 << 20).WithValueThreshold(256 << 10).WithLogger(nil)
	db, err := badger.Open(opts)
	req.NoError(err)
	defer db.Close()
	store := NewBadgerStore(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx := context.Background()

	// Given a reader that breaks after a few chunks
	broken := io.MultiReader(
		bytes.NewReader(make([]byte, 3*maxChunkSize+maxChunkSize/2)),
		iotest.ErrReader(goerrors.New("connection reset")),
	)

	// When it is stored
	_, err = store.Put(ctx, "broken.png", broken, "image/png")
	req.Error(err)

	// Then the blob is absent and no chunk is left behind
	_, _, err = store.Open(ctx, "broken.png")
	req.ErrorIs(err, errors.ErrBlobNotFound)
	req.Zero(countKeys(t, db, "blob:chunk:"))

	// And the name stays usable
	_, err = store.Put(ctx, "broken.png", bytes.NewReader([]byte("ok")), "image/png")
	req.NoError(err)
	req.Equal(1, countKeys(t, db, "blob:chunk:"))
}

func countKeys(t *testing.T, db *badger.DB, prefix string) int {
	n := 0
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}
