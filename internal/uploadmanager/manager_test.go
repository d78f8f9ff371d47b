package uploadmanager

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rowantree/go-chunkvault/internal/chunksize"
	"github.com/rowantree/go-chunkvault/internal/protocol"
)

// fakeSource is a minimal uploadtask.FileSource backed by an in-memory
// byte slice, standing in for an *os.File in tests.
type fakeSource struct {
	name string
	data []byte
	mime string
}

func (s *fakeSource) Name() string           { return s.name }
func (s *fakeSource) Size() int64            { return int64(len(s.data)) }
func (s *fakeSource) MimeType() string       { return s.mime }
func (s *fakeSource) LastModified() int64    { return 0 }
func (s *fakeSource) ReaderAt() io.ReaderAt  { return byteReaderAt(s.data) }

type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// fakeAdapter never actually completes a call; it is only here to satisfy
// uploadtask.New's non-nil Adapter requirement for tests that never call
// Start.
type fakeAdapter struct{}

func (fakeAdapter) CreateFile(ctx context.Context, req protocol.CreateFileRequest) (protocol.CreateFileResponse, error) {
	return protocol.CreateFileResponse{}, nil
}
func (fakeAdapter) VerifyHash(ctx context.Context, req protocol.VerifyHashRequest) (protocol.VerifyHashResponse, error) {
	return protocol.VerifyHashResponse{}, nil
}
func (fakeAdapter) UploadChunk(ctx context.Context, uploadToken string, chunkIndex int, chunkHash string, chunk []byte) (protocol.UploadChunkResponse, error) {
	return protocol.UploadChunkResponse{}, nil
}
func (fakeAdapter) MergeFile(ctx context.Context, req protocol.MergeFileRequest) (protocol.MergeFileResponse, error) {
	return protocol.MergeFileResponse{}, nil
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	m := New(Options{
		Adapter: fakeAdapter{},
		Chunk: chunksize.Config{
			InitialSize: 1 << 20,
			MinSize:     256 << 10,
			MaxSize:     10 << 20,
			TargetTime:  3 * time.Second,
		},
		Concurrency: 2,
		RetryCount:  3,
		RetryDelay:  time.Millisecond,
	})
	require.NoError(t, m.Init(context.Background()))
	return m
}

func TestCreateTaskRegistersAndIsRetrievable(t *testing.T) {
	m := testManager(t)
	src := &fakeSource{name: "a.bin", data: []byte("hello world"), mime: "application/octet-stream"}

	handle, err := m.CreateTask(src, CreateOptions{})
	require.NoError(t, err)
	require.Equal(t, protocol.StatusIdle, handle.Status())

	got, ok := m.GetTask(handle.ID)
	require.True(t, ok)
	require.Same(t, handle, got)
}

func TestGetAllTasksIsInsertionOrdered(t *testing.T) {
	m := testManager(t)
	var ids []string
	for i := 0; i < 5; i++ {
		h, err := m.CreateTask(&fakeSource{name: "f", data: []byte("x")}, CreateOptions{})
		require.NoError(t, err)
		ids = append(ids, h.ID)
	}

	all := m.GetAllTasks()
	require.Len(t, all, 5)
	for i, h := range all {
		require.Equal(t, ids[i], h.ID)
	}
}

func TestClearCompletedTasksKeepsNonTerminal(t *testing.T) {
	m := testManager(t)
	idle, err := m.CreateTask(&fakeSource{name: "idle", data: []byte("x")}, CreateOptions{})
	require.NoError(t, err)

	m.ClearCompletedTasks()

	_, ok := m.GetTask(idle.ID)
	require.True(t, ok, "idle (non-terminal) task must survive ClearCompletedTasks")
}

func TestGetStatisticsTalliesByStatus(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateTask(&fakeSource{name: "a", data: []byte("x")}, CreateOptions{})
	require.NoError(t, err)
	_, err = m.CreateTask(&fakeSource{name: "b", data: []byte("y")}, CreateOptions{})
	require.NoError(t, err)

	stats := m.GetStatistics()
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 2, stats.Idle)
}

func TestResumeTaskRejectsFileMismatch(t *testing.T) {
	m := testManager(t)
	record := protocol.UploadRecord{
		TaskID:         "task-1",
		File:           protocol.FileInfo{Name: "original.bin", Size: 100, MimeType: "application/octet-stream"},
		UploadedChunks: []int{0},
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, m.store.SaveRecord(context.Background(), record))

	mismatched := &fakeSource{name: "different.bin", data: make([]byte, 100), mime: "application/octet-stream"}
	_, err := m.ResumeTask(context.Background(), "task-1", mismatched, CreateOptions{})
	require.Error(t, err)
}

func TestResumeTaskPreservesUploadedChunks(t *testing.T) {
	m := testManager(t)
	data := make([]byte, 100)
	record := protocol.UploadRecord{
		TaskID:         "task-1",
		File:           protocol.FileInfo{Name: "a.bin", Size: int64(len(data)), MimeType: "application/octet-stream"},
		UploadedChunks: []int{0, 1},
		UploadToken:    "tok-123",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, m.store.SaveRecord(context.Background(), record))

	src := &fakeSource{name: "a.bin", data: data, mime: "application/octet-stream"}
	handle, err := m.ResumeTask(context.Background(), "task-1", src, CreateOptions{})
	require.NoError(t, err)
	require.Equal(t, "task-1", handle.ID)
	require.Equal(t, 2, handle.Progress().UploadedChunks)

	// The prior record is consumed; a second resume against the same id
	// must fail since GetRecord no longer finds it.
	_, err = m.ResumeTask(context.Background(), "task-1", src, CreateOptions{})
	require.Error(t, err)
}

func TestCloseCancelsAndEmptiesRegistry(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateTask(&fakeSource{name: "a", data: []byte("x")}, CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Close(context.Background()))
	require.Empty(t, m.GetAllTasks())
}
