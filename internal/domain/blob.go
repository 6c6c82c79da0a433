package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
}

// Archiver exports settled wagering history to cold storage.
type Archiver interface {
	// ArchiveSettled exports matches finished and wagers settled strictly
	// before the cutoff, returning the number of records written.
	ArchiveSettled(ctx context.Context, before time.Time) (int64, error)
}
