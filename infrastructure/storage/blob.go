package storage

import (
	"chat-relay/errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

const (
	BackendDisk   = "disk"
	BackendBadger = "badger"
	BackendS3     = "s3"
)

// checkName rejects anything that is not a single visible path element.
// Dot names are reserved for in-flight temporary files.
func checkName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\:`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: invalid blob name %q", errors.ErrBlobNotFound, name)
	}
	return nil
}

func contentTypeOf(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
