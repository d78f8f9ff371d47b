package logevents

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rowantree/go-chunkvault/internal/chunksize"
	"github.com/rowantree/go-chunkvault/internal/protocol"
	"github.com/rowantree/go-chunkvault/internal/uploadmanager"
)

type fakeSource struct{ name string }

func (s fakeSource) Name() string          { return s.name }
func (s fakeSource) Size() int64           { return 10 }
func (s fakeSource) MimeType() string      { return "application/octet-stream" }
func (s fakeSource) LastModified() int64   { return 0 }
func (s fakeSource) ReaderAt() io.ReaderAt { return bytesReaderAt{} }

type bytesReaderAt struct{}

func (bytesReaderAt) ReadAt(p []byte, off int64) (int, error) { return 0, io.EOF }

type fakeAdapter struct{}

func (fakeAdapter) CreateFile(context.Context, protocol.CreateFileRequest) (protocol.CreateFileResponse, error) {
	return protocol.CreateFileResponse{}, nil
}
func (fakeAdapter) VerifyHash(context.Context, protocol.VerifyHashRequest) (protocol.VerifyHashResponse, error) {
	return protocol.VerifyHashResponse{}, nil
}
func (fakeAdapter) UploadChunk(context.Context, string, int, string, []byte) (protocol.UploadChunkResponse, error) {
	return protocol.UploadChunkResponse{}, nil
}
func (fakeAdapter) MergeFile(context.Context, protocol.MergeFileRequest) (protocol.MergeFileResponse, error) {
	return protocol.MergeFileResponse{}, nil
}

func newTestHandle(t *testing.T) *uploadmanager.TaskHandle {
	t.Helper()
	m := uploadmanager.New(uploadmanager.Options{
		Adapter: fakeAdapter{},
		Chunk: chunksize.Config{
			InitialSize: 1 << 20,
			MinSize:     256 << 10,
			MaxSize:     10 << 20,
			TargetTime:  3 * time.Second,
		},
		Concurrency: 1,
	})
	require.NoError(t, m.Init(context.Background()))
	handle, err := m.CreateTask(fakeSource{name: "a.bin"}, uploadmanager.CreateOptions{})
	require.NoError(t, err)
	return handle
}

func TestNameIdentifiesPlugin(t *testing.T) {
	p := New(Config{})
	require.Equal(t, "logevents", p.Name())
}

// Every hook must tolerate being called directly without panicking,
// regardless of the Disable* configuration — the plugin owns this
// guarantee itself rather than relying on the Manager's panic isolation.
func TestHooksDoNotPanicWhenEnabled(t *testing.T) {
	p := New(Config{})
	handle := newTestHandle(t)
	require.NotPanics(t, func() {
		p.OnTaskCreated(handle)
		p.OnTaskStart(handle.ID)
		p.OnTaskProgress(handle.ID, protocol.Progress{Percentage: 50})
		p.OnTaskSuccess(handle.ID, "https://example.invalid/f")
		p.OnTaskError(handle.ID, errors.New("boom"))
		p.OnTaskPause(handle.ID)
		p.OnTaskResume(handle.ID)
		p.OnTaskCancel(handle.ID)
	})
}

func TestHooksDoNotPanicWhenDisabled(t *testing.T) {
	p := New(Config{
		DisableCreated:  true,
		DisableStart:    true,
		DisableProgress: true,
		DisableSuccess:  true,
		DisableError:    true,
		DisablePause:    true,
		DisableResume:   true,
		DisableCancel:   true,
	})
	handle := newTestHandle(t)
	require.NotPanics(t, func() {
		p.OnTaskCreated(handle)
		p.OnTaskStart(handle.ID)
		p.OnTaskProgress(handle.ID, protocol.Progress{})
		p.OnTaskSuccess(handle.ID, "")
		p.OnTaskError(handle.ID, errors.New("boom"))
		p.OnTaskPause(handle.ID)
		p.OnTaskResume(handle.ID)
		p.OnTaskCancel(handle.ID)
	})
}
