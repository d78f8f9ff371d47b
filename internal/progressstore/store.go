// Package progressstore implements the client-side progress store: a
// key/value store of UploadRecords keyed by taskId, the only state that
// survives a client restart. Two backends are provided — an in-memory
// memstore for tests and degraded-mode operation, and a durable sqlitestore
// grounded on theanswer42-bt-go's embedded-SQLite + golang-migrate pattern
// (internal/database/sqlite.go, internal/database/migrations).
package progressstore

import (
	"context"

	"github.com/rowantree/go-chunkvault/internal/protocol"
)

// RecordPatch is updateRecord's partial-update payload: fields left nil are
// preserved from the existing record (read-modify-write semantics).
// TaskID is never part of a patch — it is immutable once a record exists.
type RecordPatch struct {
	UploadedChunks []int
	UploadToken    *string
}

// Store is the progress store capability. When Init fails,
// internal/uploadmanager degrades to an in-memory Store rather than
// aborting; a write that fails later is logged by internal/uploadtask and
// does not stop the upload.
type Store interface {
	// Init prepares the backend (e.g. opens the database, runs migrations).
	Init(ctx context.Context) error

	// SaveRecord persists a brand-new record. CreatedAt/UpdatedAt are
	// stamped by the caller (internal/uploadtask) before calling SaveRecord.
	SaveRecord(ctx context.Context, record protocol.UploadRecord) error

	// GetRecord returns the record for taskId, or an OperationFailed error
	// if it does not exist.
	GetRecord(ctx context.Context, taskID string) (protocol.UploadRecord, error)

	// UpdateRecord applies patch to the existing record for taskId via
	// read-modify-write, stamping UpdatedAt to the current time
	// automatically. Fields absent from patch (nil) are left untouched.
	UpdateRecord(ctx context.Context, taskID string, patch RecordPatch) error

	// DeleteRecord removes taskId's record, if any. Deleting an absent
	// record is not an error.
	DeleteRecord(ctx context.Context, taskID string) error

	// GetAllRecords returns every persisted record, in no particular order.
	GetAllRecords(ctx context.Context) ([]protocol.UploadRecord, error)

	// ClearAll removes every persisted record.
	ClearAll(ctx context.Context) error

	// Close releases backend resources (e.g. closes the database handle).
	Close() error
}
