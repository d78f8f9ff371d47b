// Package sqlite is the durable Progress Store backend, grounded on
// theanswer42-bt-go's internal/database.SQLiteDatabase: a *sql.DB opened
// against mattn/go-sqlite3, schema brought up via golang-migrate, plain
// database/sql statements rather than an ORM (the client binary has no
// GORM dependency — that's the server's stack).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
	"github.com/rowantree/go-chunkvault/internal/progressstore"
	"github.com/rowantree/go-chunkvault/internal/progressstore/sqlite/migrations"
	"github.com/rowantree/go-chunkvault/internal/protocol"
)

// Store is the SQLite-backed progressstore.Store implementation.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (but does not yet migrate) a SQLite database at path. path may
// be ":memory:" for an ephemeral store. Call Init before use.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("progressstore/sqlite: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("progressstore/sqlite: enabling foreign keys: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Init runs pending schema migrations. A failure here
// classifies as StorageUnavailable — the manager is expected to catch it
// and fall back to progressstore.NewMemStore rather than abort startup.
func (s *Store) Init(ctx context.Context) error {
	if err := migrations.MigrateUp(s.db); err != nil {
		return xerr.NewCodeError(xerr.StorageUnavailableCode, xerr.ErrStorageUnavailable)
	}
	return nil
}

func (s *Store) SaveRecord(ctx context.Context, record protocol.UploadRecord) error {
	chunks, err := json.Marshal(record.UploadedChunks)
	if err != nil {
		return xerr.NewCodeError(xerr.OperationFailedCode, xerr.ErrOperationFailed)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO upload_records
			(task_id, file_name, file_size, file_type, last_modified, file_hash, uploaded_chunks, upload_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			file_name=excluded.file_name, file_size=excluded.file_size, file_type=excluded.file_type,
			last_modified=excluded.last_modified, file_hash=excluded.file_hash,
			uploaded_chunks=excluded.uploaded_chunks, upload_token=excluded.upload_token,
			updated_at=excluded.updated_at`,
		record.TaskID, record.File.Name, record.File.Size, record.File.MimeType,
		record.File.LastModified, record.File.FileHash, string(chunks), record.UploadToken,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, taskID string) (protocol.UploadRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, file_name, file_size, file_type, last_modified, file_hash, uploaded_chunks, upload_token, created_at, updated_at
		FROM upload_records WHERE task_id = ?`, taskID)
	return scanRecord(row)
}

func (s *Store) UpdateRecord(ctx context.Context, taskID string, patch progressstore.RecordPatch) error {
	existing, err := s.GetRecord(ctx, taskID)
	if err != nil {
		return err
	}
	if patch.UploadedChunks != nil {
		existing.UploadedChunks = patch.UploadedChunks
	}
	if patch.UploadToken != nil {
		existing.UploadToken = *patch.UploadToken
	}
	existing.UpdatedAt = time.Now()
	return s.SaveRecord(ctx, existing)
}

func (s *Store) DeleteRecord(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM upload_records WHERE task_id = ?`, taskID)
	if err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

func (s *Store) GetAllRecords(ctx context.Context) ([]protocol.UploadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, file_name, file_size, file_type, last_modified, file_hash, uploaded_chunks, upload_token, created_at, updated_at
		FROM upload_records`)
	if err != nil {
		return nil, xerr.NewCodeError(xerr.OperationFailedCode, xerr.ErrOperationFailed)
	}
	defer rows.Close()

	var records []protocol.UploadRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM upload_records`)
	if err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// scanner abstracts over *sql.Row and *sql.Rows, both of which expose Scan.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (protocol.UploadRecord, error) {
	var record protocol.UploadRecord
	var chunksJSON string
	err := row.Scan(
		&record.TaskID, &record.File.Name, &record.File.Size, &record.File.MimeType,
		&record.File.LastModified, &record.File.FileHash, &chunksJSON, &record.UploadToken,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return protocol.UploadRecord{}, xerr.NewCodeError(xerr.OperationFailedCode, xerr.ErrOperationFailed)
	}
	if err != nil {
		return protocol.UploadRecord{}, xerr.NewCodeError(xerr.OperationFailedCode, xerr.ErrOperationFailed)
	}
	if err := json.Unmarshal([]byte(chunksJSON), &record.UploadedChunks); err != nil {
		return protocol.UploadRecord{}, xerr.NewCodeError(xerr.OperationFailedCode, xerr.ErrOperationFailed)
	}
	return record, nil
}

// classifyWriteErr maps SQLite's "database or disk is full" condition to
// QuotaExceeded per the store's error taxonomy, and everything else to
// OperationFailed.
func classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if sqliteErr, ok := err.(interface{ Error() string }); ok {
		if sqliteErr.Error() == "database or disk is full" {
			return xerr.NewCodeError(xerr.QuotaExceededCode, xerr.ErrQuotaExceeded)
		}
	}
	return xerr.NewCodeError(xerr.OperationFailedCode, xerr.ErrOperationFailed)
}

var _ progressstore.Store = (*Store)(nil)
