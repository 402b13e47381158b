package storage

import (
	"bytes"
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// maxChunkSize keeps every write well under badger's transaction size limit.
const maxChunkSize = 512 << 10

type blobMeta struct {
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Chunks      int       `json:"chunks"`
	CreatedAt   time.Time `json:"created_at"`
}

// BadgerStore keeps blobs inside BadgerDB, split into fixed size chunks.
// The meta key is written last: a blob without meta does not exist.
type BadgerStore struct {
	db        *badger.DB
	log       *slog.Logger
	chunkSize int
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log, chunkSize: chunkSizeFor(db.Opts())}
}

// chunkSizeFor stays strictly below the value threshold of an in-memory DB,
// which has no value log to hold larger values.
func chunkSizeFor(opts badger.Options) int {
	if opts.InMemory && opts.ValueThreshold > 1 && opts.ValueThreshold <= maxChunkSize {
		return int(opts.ValueThreshold) - 1
	}
	return maxChunkSize
}

func metaKey(name string) []byte {
	return []byte(fmt.Sprintf("blob:meta:%s", name))
}

func chunkKey(name string, i int) []byte {
	return []byte(fmt.Sprintf("blob:chunk:%s:%06d", name, i))
}

// Put streams r into chunks. On failure the chunks already committed by the batch are swept.
func (b *BadgerStore) Put(ctx context.Context, name string, r io.Reader, contentType string) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	size, chunks, err := b.writeChunks(ctx, wb, name, r)
	if err == nil {
		err = b.writeMeta(wb, name, size, chunks, contentType)
	}
	if err != nil {
		wb.Cancel()
		b.sweep(name, chunks)
		return size, err
	}
	return size, nil
}

func (b *BadgerStore) writeChunks(ctx context.Context, wb *badger.WriteBatch, name string, r io.Reader) (int64, int, error) {
	var size int64
	chunks := 0
	buf := make([]byte, b.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return size, chunks, err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if setErr := wb.Set(chunkKey(name, chunks), bytes.Clone(buf[:n])); setErr != nil {
				return size, chunks, fmt.Errorf("write chunk %d of %s: %w", chunks, name, setErr)
			}
			chunks++
			size += int64(n)
		}
		if goerrors.Is(err, io.EOF) || goerrors.Is(err, io.ErrUnexpectedEOF) {
			return size, chunks, nil
		}
		if err != nil {
			return size, chunks, fmt.Errorf("read %s: %w", name, err)
		}
	}
}

func (b *BadgerStore) writeMeta(wb *badger.WriteBatch, name string, size int64, chunks int, contentType string) error {
	if contentType == "" {
		contentType = contentTypeOf(name)
	}
	data, err := json.Marshal(blobMeta{Size: size, ContentType: contentType, Chunks: chunks, CreatedAt: time.Now()})
	if err != nil {
		return err
	}
	if err := wb.Set(metaKey(name), data); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return nil
}

// sweep deletes the keys a failed Put may have left, the chunk being written when it failed included.
func (b *BadgerStore) sweep(name string, chunks int) {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Delete(metaKey(name)); err != nil {
		b.log.Error("Failed to sweep blob meta", "filename", name, "error", err)
		return
	}
	for i := 0; i <= chunks; i++ {
		if err := wb.Delete(chunkKey(name, i)); err != nil {
			b.log.Error("Failed to sweep blob chunk", "filename", name, "chunk", i, "error", err)
			return
		}
	}
	if err := wb.Flush(); err != nil {
		b.log.Error("Failed to sweep partial blob", "filename", name, "error", err)
	}
}

func (b *BadgerStore) Open(_ context.Context, name string) (io.ReadCloser, contract.BlobInfo, error) {
	if err := checkName(name); err != nil {
		return nil, contract.BlobInfo{}, err
	}
	var meta blobMeta
	var content bytes.Buffer
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(name))
		if err != nil {
			return err
		}
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &meta)
		}); err != nil {
			return err
		}
		content.Grow(int(meta.Size))
		for i := 0; i < meta.Chunks; i++ {
			item, err := txn.Get(chunkKey(name, i))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if err := item.Value(func(v []byte) error {
				content.Write(v)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return nil, contract.BlobInfo{}, fmt.Errorf("%w: %s", errors.ErrBlobNotFound, name)
	}
	if err != nil {
		return nil, contract.BlobInfo{}, fmt.Errorf("read %s: %w", name, err)
	}
	return io.NopCloser(&content), contract.BlobInfo{
		Name:        name,
		Size:        meta.Size,
		ContentType: meta.ContentType,
		ModTime:     meta.CreatedAt,
	}, nil
}

// Delete removes the meta key first, then the chunks.
func (b *BadgerStore) Delete(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	var meta blobMeta
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(name))
		if err != nil {
			return err
		}
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &meta)
		}); err != nil {
			return err
		}
		return txn.Delete(metaKey(name))
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for i := 0; i < meta.Chunks; i++ {
		if err := wb.Delete(chunkKey(name, i)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// List returns the metadata of every complete blob, ordered by name.
func (b *BadgerStore) List(_ context.Context) ([]contract.BlobInfo, error) {
	var infos []contract.BlobInfo
	prefix := []byte("blob:meta:")

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var meta blobMeta
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &meta)
			}); err != nil {
				return fmt.Errorf("meta %s: %w", item.Key(), err)
			}
			infos = append(infos, contract.BlobInfo{
				Name:        string(item.Key()[len(prefix):]),
				Size:        meta.Size,
				ContentType: meta.ContentType,
				ModTime:     meta.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during blob listing: %w", err)
	}
	return infos, nil
}
