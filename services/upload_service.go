package services

import (
	"bufio"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen matches the number of bytes mimetype inspects by default.
const sniffLen = 3072

const DefaultMaxUploadBytes int64 = 10 << 20

// Upload is a file as received at the HTTP boundary.
// Size is the size declared by the transport, or -1 when unknown.
type Upload struct {
	OriginalName string
	Size         int64
	Body         io.Reader
}

type StoredFile struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

type IUploadService interface {
	Accept(ctx context.Context, upload Upload) (StoredFile, error)
}

// UploadService checks an upload against the size and type policy and writes it to the blob store.
// It shares no lock with the registry: storage I/O never stalls a broadcast.
type UploadService struct {
	log      *slog.Logger
	store    contract.BlobStore
	maxBytes int64
	clock    domain.Clock
}

func NewUploadService(log *slog.Logger, store contract.BlobStore, maxBytes int64) *UploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadService{log: log, store: store, maxBytes: maxBytes, clock: time.Now}
}

// Accept rejects missing, oversized or disallowed files before anything is stored.
// The size limit is enforced again while streaming in case the declared size lied.
func (s *UploadService) Accept(ctx context.Context, upload Upload) (StoredFile, error) {
	if upload.Body == nil || upload.OriginalName == "" {
		return StoredFile{}, errors.ErrNoFileUploaded
	}
	if upload.Size > s.maxBytes {
		return StoredFile{}, fmt.Errorf("%w: %d bytes", errors.ErrFileTooLarge, upload.Size)
	}
	category, ok := mimetypes.CategoryOf(upload.OriginalName)
	if !ok {
		return StoredFile{}, fmt.Errorf("%w: %q", errors.ErrFileTypeNotAllowed, upload.OriginalName)
	}

	body := bufio.NewReaderSize(upload.Body, sniffLen)
	head, err := body.Peek(sniffLen)
	if err != nil && err != io.EOF {
		return StoredFile{}, fmt.Errorf("read upload head: %w", err)
	}
	detected := mimetype.Detect(head)
	if !mimetypes.Allowed(category, mimeChain(detected)...) {
		return StoredFile{}, fmt.Errorf("%w: %q sniffed as %s", errors.ErrFileTypeNotAllowed, upload.OriginalName, detected.String())
	}

	name := s.storedName(mimetypes.Extension(upload.OriginalName))
	limited := &io.LimitedReader{R: body, N: s.maxBytes + 1}
	written, err := s.store.Put(ctx, name, limited, detected.String())
	if err != nil {
		return StoredFile{}, fmt.Errorf("store %s: %w", name, err)
	}
	if written > s.maxBytes {
		if err := s.store.Delete(ctx, name); err != nil {
			s.log.Error("Failed to remove oversized upload", "filename", name, "error", err)
		}
		return StoredFile{}, fmt.Errorf("%w: more than %d bytes streamed", errors.ErrFileTooLarge, s.maxBytes)
	}

	s.log.Info("File stored", "filename", name, "original_name", upload.OriginalName, "size", written, "mime", detected.String())
	return StoredFile{
		Filename:     name,
		OriginalName: upload.OriginalName,
		Size:         written,
		URL:          domain.UploadURL(name),
	}, nil
}

// storedName is "<unix ms>-<random>" followed by the original extension.
func (s *UploadService) storedName(ext string) string {
	return fmt.Sprintf("%d-%d%s", s.clock().UnixMilli(), rand.Int64N(1_000_000_000), ext)
}

// mimeChain lists the sniffed type followed by its parents (docx -> zip, ...).
func mimeChain(m *mimetype.MIME) []string {
	var chain []string
	for ; m != nil; m = m.Parent() {
		chain = append(chain, m.String())
	}
	return chain
}
