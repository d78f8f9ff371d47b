// Package blobstore implements the server's content-addressed chunk
// store: chunks are immutable, keyed by their 32-hex digest, and never
// deleted. Three backends are provided, adapted from a generic "object
// storage with S3 multipart upload" service — rewritten from "upload one
// big object in parts" to "put one already-content-addressed blob, read
// it back whole or ranged" since chunks already arrive pre-sliced and
// pre-hashed; there is no multipart upload of a single object left to do.
package blobstore

import (
	"context"
	"io"
)

// Range is an inclusive byte range [Start, End] within a single blob,
// addressed relative to the blob's own bytes (not the assembled file).
type Range struct {
	Start int64
	End   int64
}

// BlobStore is the server's content-addressed blob capability. Put is
// idempotent by hash: putting an already-present hash is a no-op success.
// For any hash h actually present in the store, reading it back and
// re-hashing the bytes must yield h (the content-address
// invariant) — backends are responsible for durability (fsync or
// equivalent) before acknowledging a Put.
type BlobStore interface {
	// Put stores size bytes read from r under hash. Idempotent: if hash is
	// already present, Put returns nil without re-reading r's caller-side
	// effects being relied upon (the caller must still drain or discard r).
	Put(ctx context.Context, hash string, r io.Reader, size int64) error

	// Has reports whether hash is already stored.
	Has(ctx context.Context, hash string) (bool, error)

	// OpenRead opens hash for reading, optionally restricted to rng. The
	// caller must Close the returned ReadCloser. The second return value is
	// the number of bytes the stream will yield.
	OpenRead(ctx context.Context, hash string, rng *Range) (io.ReadCloser, int64, error)

	// Len returns the full stored length of hash, for range-math callers
	// that need a blob's size without opening it.
	Len(ctx context.Context, hash string) (int64, error)
}

// key maps a content hash to its blob's storage-backend key (object name).
// Chunks are stored under a fixed "chunks/" prefix, sharded two levels deep
// by hash prefix the way a git object store shards — purely to keep any
// single backend "directory" from growing unbounded; it has no semantic
// meaning and every backend must agree on it so the same hash always maps
// to the same object.
func key(hash string) string {
	if len(hash) < 4 {
		return "chunks/" + hash
	}
	return "chunks/" + hash[0:2] + "/" + hash[2:4] + "/" + hash
}
