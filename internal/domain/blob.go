package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter writes objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader reads objects back from cold storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Archiver moves finalized markets and old stake events to cold storage.
type Archiver interface {
	ArchiveFinalizedMarkets(ctx context.Context, cutoff time.Time) (int64, error)
	ArchiveStakeEvents(ctx context.Context, cutoff time.Time) (int64, error)
}
