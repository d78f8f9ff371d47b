package metastore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
)

// newStoreWithMock wires a GormStore to a sqlmock-backed *sql.DB, the same
// pattern the pack's postgres repository tests use for the raw driver,
// adapted for gorm's mysql dialector via its Conn override.
func newStoreWithMock(t *testing.T) (*GormStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return NewGormStore(gdb), mock, sqlDB
}

func TestCreatePendingManifest_Success(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `manifests`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	m, err := store.CreatePendingManifest(context.Background(), NewManifestParams{
		FileID:    "f1",
		FileName:  "a.bin",
		TotalSize: 100,
		ChunkSize: 10,
		ExpiresIn: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, ManifestPending, m.Status)
	assert.Equal(t, "f1", m.FileID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingManifest_Duplicate(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `manifests`")).
		WillReturnError(errors.New("Error 1062: Duplicate entry 'f1' for key 'manifests.file_id'"))
	mock.ExpectRollback()

	_, err := store.CreatePendingManifest(context.Background(), NewManifestParams{
		FileID: "f1", FileName: "a.bin", TotalSize: 10, ChunkSize: 10, ExpiresIn: time.Hour,
	})
	assert.ErrorIs(t, err, xerr.ErrFileAlreadyExists)
}

func TestGetManifestByFileID_NotFound(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `manifests`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetManifestByFileID(context.Background(), "missing")
	assert.ErrorIs(t, err, xerr.ErrFileNotFound)
}

func TestCompleteManifest_Incomplete(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `manifests`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_id", "total_size", "chunk_size", "status"}).
			AddRow(1, "f1", 100, 10, "pending"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `manifest_chunks`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	_, err := store.CompleteManifest(context.Background(), "f1", "deadbeef")
	assert.ErrorIs(t, err, xerr.ErrManifestIncomplete)
}

func TestSweepExpiredPendingManifests(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	// Manifest carries gorm.DeletedAt, so Delete is a soft delete: an UPDATE
	// of deleted_at inside gorm's default transaction.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `manifests` SET `deleted_at`")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := store.SweepExpiredPendingManifests(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
