package progressstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rowantree/go-chunkvault/internal/protocol"
)

func TestSaveThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	record := protocol.UploadRecord{
		TaskID:         "task-1",
		File:           protocol.FileInfo{Name: "a.bin", Size: 100},
		UploadedChunks: []int{0, 1},
		UploadToken:    "tok",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, s.SaveRecord(ctx, record))

	got, err := s.GetRecord(ctx, record.TaskID)
	require.NoError(t, err)
	require.Equal(t, record, got)
}

func TestUpdateRecordPreservesUnpatchedFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	record := protocol.UploadRecord{
		TaskID:         "task-1",
		File:           protocol.FileInfo{Name: "a.bin", Size: 100},
		UploadedChunks: []int{0},
		UploadToken:    "tok-1",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, s.SaveRecord(ctx, record))

	require.NoError(t, s.UpdateRecord(ctx, record.TaskID, RecordPatch{UploadedChunks: []int{0, 1}}))

	got, err := s.GetRecord(ctx, record.TaskID)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, got.UploadedChunks)
	require.Equal(t, "tok-1", got.UploadToken) // untouched by the patch
	require.GreaterOrEqual(t, got.UpdatedAt, record.UpdatedAt)
}

func TestUpdateRecordImmutableTaskID(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	record := protocol.UploadRecord{TaskID: "task-1", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.SaveRecord(ctx, record))

	require.NoError(t, s.UpdateRecord(ctx, "task-1", RecordPatch{}))
	got, err := s.GetRecord(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, "task-1", got.TaskID)
}

func TestGetRecordMissingFails(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	_, err := s.GetRecord(ctx, "missing")
	require.Error(t, err)
}

func TestClearAllRemovesEverything(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.SaveRecord(ctx, protocol.UploadRecord{TaskID: "a", CreatedAt: time.Now(), UpdatedAt: time.Now()}))
	require.NoError(t, s.SaveRecord(ctx, protocol.UploadRecord{TaskID: "b", CreatedAt: time.Now(), UpdatedAt: time.Now()}))

	require.NoError(t, s.ClearAll(ctx))
	all, err := s.GetAllRecords(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}
