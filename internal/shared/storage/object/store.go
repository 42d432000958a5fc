package object

import (
	"context"
	"io"
)

// ObjectStore archives uploaded trace files.
type ObjectStore interface {
	// Save writes r under the owner's namespace and returns the storage key.
	Save(ctx context.Context, ownerID, fileName, contentType string, r io.Reader) (storageKey string, sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// ArchiveKey returns the storage key for an owner's archived file.
func ArchiveKey(ownerKey, fileName string) string {
	return ownerKey + "/traces/" + fileName
}
