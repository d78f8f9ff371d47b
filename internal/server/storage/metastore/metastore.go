package metastore

import (
	"context"
	"time"
)

// NewManifestParams is the input to CreatePendingManifest.
type NewManifestParams struct {
	FileID    string
	FileName  string
	MimeType  string
	TotalSize int64
	ChunkSize int64
	ExpiresIn time.Duration
}

// ChunkRef is one received (index, hash, size) triple, the unit
// uploadChunk records against a Manifest.
type ChunkRef struct {
	Index int
	Hash  string
	Size  int64
}

// MetadataStore is the server's manifest/chunk-reference bookkeeping
// capability. It never touches chunk bytes —
// that is blobstore.BlobStore's job.
type MetadataStore interface {
	// CreatePendingManifest creates a new pending Manifest for a fresh
	// chunked upload. Returns xerr.ErrFileAlreadyExists if FileID collides
	// with an existing manifest.
	CreatePendingManifest(ctx context.Context, p NewManifestParams) (*Manifest, error)

	// GetManifestByFileID returns the Manifest (with its Chunks ordered by
	// index) for fileID, or xerr.ErrFileNotFound.
	GetManifestByFileID(ctx context.Context, fileID string) (*Manifest, error)

	// GetCompletedManifestByFileHash looks up an already-completed Manifest
	// by its whole-file hash, for instant-upload / verifyHash dedup checks.
	// Returns nil, nil (no error) when none exists.
	GetCompletedManifestByFileHash(ctx context.Context, fileHash string) (*Manifest, error)

	// RecordChunk upserts one received chunk's (index -> hash, size) into
	// fileID's manifest. Idempotent: re-recording the same index with the
	// same hash is a no-op; re-recording the same index with a different
	// hash is a logic error the caller should not trigger (uploadtask
	// always sends the same planned hash for a given index).
	RecordChunk(ctx context.Context, fileID string, chunk ChunkRef) error

	// ReceivedChunkIndices returns the set of chunk indices already
	// recorded for fileID, for verifyHash's resume-point computation.
	ReceivedChunkIndices(ctx context.Context, fileID string) (map[int]bool, error)

	// CompleteManifest marks fileID's manifest completed and binds its
	// whole-file hash, inside a single transaction with chunk-completeness
	// validation. Returns xerr.ErrManifestIncomplete if fewer chunks are
	// recorded than the manifest's computed chunk count.
	CompleteManifest(ctx context.Context, fileID string, fileHash string) (*Manifest, error)

	// NextFileVersion appends a new FileVersion row for fileName pointing
	// at manifestID, returning the assigned version number (1-based,
	// monotonically increasing per fileName).
	NextFileVersion(ctx context.Context, fileName string, manifestID uint64) (int, error)

	// SweepExpiredPendingManifests deletes pending manifests whose
	// ExpiresAt has passed, returning the count removed. Supplements
	// paired with garbage collection of abandoned upload sessions.
	SweepExpiredPendingManifests(ctx context.Context, now time.Time) (int64, error)
}
