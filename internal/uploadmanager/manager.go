// Package uploadmanager implements the upload manager: the client's
// multi-task registry, plugin fan-out, resume orchestration, and batch
// operations (pauseAll/resumeAll/cancelAll/clearCompletedTasks).
//
// The registry is a struct holding a map plus a mutex, constructed once
// at startup and handed to every caller: one in-memory registry of live
// uploadtask.Tasks plus a durable progressstore.Store for what survives a
// restart.
package uploadmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rowantree/go-chunkvault/internal/adapter"
	"github.com/rowantree/go-chunkvault/internal/chunksize"
	"github.com/rowantree/go-chunkvault/internal/eventbus"
	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
	"github.com/rowantree/go-chunkvault/internal/progressstore"
	"github.com/rowantree/go-chunkvault/internal/protocol"
	"github.com/rowantree/go-chunkvault/internal/uploadtask"
)

// Options bundles the per-task construction knobs a Manager applies to
// every CreateTask/ResumeTask call unless overridden by CreateOptions.
type Options struct {
	Adapter     adapter.RequestAdapter
	Store       progressstore.Store
	Chunk       chunksize.Config
	Concurrency int
	RetryCount  int
	RetryDelay  time.Duration
}

// CreateOptions carries the per-call overrides CreateTask/ResumeTask accept
// on top of the Manager's Options defaults. Zero values mean "use the
// Manager's default".
type CreateOptions struct {
	Chunk       *chunksize.Config
	Concurrency int
	RetryCount  int
	RetryDelay  time.Duration
}

// TaskHandle is the Manager's view of one registered task: the live
// uploadtask.Task plus the ordinal the Manager assigned it, used to keep
// GetAllTasks insertion-ordered.
type TaskHandle struct {
	ID   string
	task *uploadtask.Task
	seq  int
}

// Status returns the task's current state.
func (h *TaskHandle) Status() protocol.TaskStatus { return h.task.GetStatus() }

// Progress returns the task's current progress snapshot.
func (h *TaskHandle) Progress() protocol.Progress { return h.task.GetProgress() }

// Start begins the task's upload.
func (h *TaskHandle) Start(ctx context.Context) error { return h.task.Start(ctx) }

// Pause cooperatively halts chunk submission.
func (h *TaskHandle) Pause() error { return h.task.Pause() }

// Resume continues a paused task.
func (h *TaskHandle) Resume() error { return h.task.Resume() }

// Cancel stops the task permanently.
func (h *TaskHandle) Cancel(ctx context.Context) error { return h.task.Cancel(ctx) }

// On registers handler for event on the underlying task's bus, returning a
// subscription id that Off can use to remove exactly this registration.
func (h *TaskHandle) On(event eventbus.Event, handler eventbus.Handler) int {
	return h.task.On(event, handler)
}

// Off removes a handler previously registered with On.
func (h *TaskHandle) Off(event eventbus.Event, id int) {
	h.task.Off(event, id)
}

// File returns the task's FileInfo snapshot (Name/Size/MimeType are fixed
// at construction; FileHash is set once hashing completes).
func (h *TaskHandle) File() protocol.FileInfo {
	return h.task.File()
}

// Manager is the registry of taskId -> TaskHandle. It holds no file
// bytes; FileSources are supplied fresh by the caller on every
// CreateTask/ResumeTask call. The zero value is not usable; use New.
type Manager struct {
	mu       sync.Mutex
	opts     Options
	store    progressstore.Store
	tasks    map[string]*TaskHandle
	nextSeq  int
	plugins  []Plugin
	closed   bool
}

// New constructs a Manager. Call Init before creating any tasks.
func New(opts Options) *Manager {
	return &Manager{
		opts:  opts,
		store: opts.Store,
		tasks: make(map[string]*TaskHandle),
	}
}

// Init prepares the progress store. If the store fails to initialize, the
// Manager degrades to in-memory operation (a StorageUnavailable failure
// never aborts the manager) by falling back to an unbacked
// progressstore.Memstore.
func (m *Manager) Init(ctx context.Context) error {
	if m.store == nil {
		m.store = progressstore.NewMemStore()
		m.opts.Store = m.store
		return nil
	}
	if err := m.store.Init(ctx); err != nil {
		logger.Warn("uploadmanager: progress store init failed, degrading to in-memory", zap.Error(err))
		m.store = progressstore.NewMemStore()
		m.opts.Store = m.store
	}
	return nil
}

// CreateTask registers and returns a new task for source. The task starts
// in StatusIdle; call handle.Start to begin work.
func (m *Manager) CreateTask(source uploadtask.FileSource, opts CreateOptions) (*TaskHandle, error) {
	cfg := m.taskConfig(source, opts)
	task, err := uploadtask.New(cfg)
	if err != nil {
		return nil, err
	}
	return m.register(task), nil
}

// GetTask returns the handle registered under taskID, or false if none.
func (m *Manager) GetTask(taskID string) (*TaskHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.tasks[taskID]
	return h, ok
}

// GetAllTasks returns every registered task, in the order it was created.
func (m *Manager) GetAllTasks() []*TaskHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*TaskHandle, 0, len(m.tasks))
	for _, h := range m.tasks {
		out = append(out, h)
	}
	sortBySeq(out)
	return out
}

// DeleteTask cancels taskID if active and removes it from the registry.
// Progress-record cleanup is best-effort: a failure is logged, not
// returned, since the task is being forgotten either way.
func (m *Manager) DeleteTask(ctx context.Context, taskID string) error {
	m.mu.Lock()
	h, ok := m.tasks[taskID]
	if ok {
		delete(m.tasks, taskID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if !h.Status().Terminal() {
		if err := h.Cancel(ctx); err != nil {
			logger.Warn("uploadmanager: cancel on delete failed", zap.String("taskId", taskID), zap.Error(err))
		}
	}
	if m.store != nil {
		if err := m.store.DeleteRecord(ctx, taskID); err != nil {
			logger.Warn("uploadmanager: delete progress record failed", zap.String("taskId", taskID), zap.Error(err))
		}
	}
	return nil
}

// PauseAll pauses every task currently uploading. Tasks not in a pausable
// state are skipped silently (batch ops are best-effort).
func (m *Manager) PauseAll() {
	for _, h := range m.GetAllTasks() {
		if h.Status() == protocol.StatusUploading {
			_ = h.Pause()
		}
	}
}

// ResumeAll resumes every paused task.
func (m *Manager) ResumeAll() {
	for _, h := range m.GetAllTasks() {
		if h.Status() == protocol.StatusPaused {
			_ = h.Resume()
		}
	}
}

// CancelAll cancels every non-terminal task.
func (m *Manager) CancelAll(ctx context.Context) {
	for _, h := range m.GetAllTasks() {
		if !h.Status().Terminal() {
			_ = h.Cancel(ctx)
		}
	}
}

// ClearCompletedTasks removes every task in a terminal state (success,
// error, or cancelled) from the registry. It does not touch the progress
// store: uploadtask already deletes the record on success/cancel, and an
// error-state record is left for manual resume until explicitly deleted.
func (m *Manager) ClearCompletedTasks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range m.tasks {
		if h.Status().Terminal() {
			delete(m.tasks, id)
		}
	}
}

// Statistics is the snapshot returned by GetStatistics.
type Statistics struct {
	Total     int
	Idle      int
	Hashing   int
	Uploading int
	Paused    int
	Success   int
	Error     int
	Cancelled int
}

// GetStatistics tallies every registered task by status.
func (m *Manager) GetStatistics() Statistics {
	var s Statistics
	for _, h := range m.GetAllTasks() {
		s.Total++
		switch h.Status() {
		case protocol.StatusIdle:
			s.Idle++
		case protocol.StatusHashing:
			s.Hashing++
		case protocol.StatusUploading:
			s.Uploading++
		case protocol.StatusPaused:
			s.Paused++
		case protocol.StatusSuccess:
			s.Success++
		case protocol.StatusError:
			s.Error++
		case protocol.StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// GetUnfinishedTasksInfo returns every persisted record the progress store
// holds — candidates for ResumeTask once the UI has collected a re-selected
// file from the user (the original bytes cannot survive a client restart).
func (m *Manager) GetUnfinishedTasksInfo(ctx context.Context) ([]protocol.UploadRecord, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.GetAllRecords(ctx)
}

// ResumeTask validates that source matches the persisted record's name,
// size, and type (lastModified is informational only, never enforced —
// some platforms rewrite it on copy) and, on success, constructs a new
// task preserving the original id, token, and uploaded-chunks set, then
// deletes the prior record (a fresh one is written when the resumed task
// starts). A mismatch returns a FileMismatch error synchronously; no task
// is created.
func (m *Manager) ResumeTask(ctx context.Context, taskID string, source uploadtask.FileSource, opts CreateOptions) (*TaskHandle, error) {
	if m.store == nil {
		return nil, xerr.NewCodeError(xerr.UploadSessionNotFoundCode, xerr.ErrUploadSessionNotFound)
	}
	record, err := m.store.GetRecord(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := matchesRecord(record.File, source); err != nil {
		return nil, err
	}

	cfg := m.taskConfig(source, opts)
	cfg.ResumeTaskID = record.TaskID
	cfg.ResumeUploadToken = record.UploadToken
	cfg.ResumeUploadedChunks = append([]int(nil), record.UploadedChunks...)

	task, err := uploadtask.New(cfg)
	if err != nil {
		return nil, err
	}
	handle := m.register(task)

	if err := m.store.DeleteRecord(ctx, taskID); err != nil {
		logger.Warn("uploadmanager: delete prior record on resume failed", zap.String("taskId", taskID), zap.Error(err))
	}
	return handle, nil
}

// Close cancels every task, closes the progress store, and empties the
// registry. The Manager must not be used afterward.
func (m *Manager) Close(ctx context.Context) error {
	m.CancelAll(ctx)

	m.mu.Lock()
	m.tasks = make(map[string]*TaskHandle)
	m.closed = true
	store := m.store
	m.mu.Unlock()

	if store != nil {
		return store.Close()
	}
	return nil
}

// register installs task into the registry under a fresh ordinal and wires
// its events to every registered plugin.
func (m *Manager) register(task *uploadtask.Task) *TaskHandle {
	m.mu.Lock()
	m.nextSeq++
	handle := &TaskHandle{ID: task.ID(), task: task, seq: m.nextSeq}
	m.tasks[handle.ID] = handle
	m.mu.Unlock()

	m.wirePluginFanout(handle)
	return handle
}

// taskConfig merges the Manager's defaults with a call's CreateOptions.
func (m *Manager) taskConfig(source uploadtask.FileSource, opts CreateOptions) uploadtask.Config {
	chunk := m.opts.Chunk
	if opts.Chunk != nil {
		chunk = *opts.Chunk
	}
	concurrency := m.opts.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}
	retryCount := m.opts.RetryCount
	if opts.RetryCount > 0 {
		retryCount = opts.RetryCount
	}
	retryDelay := m.opts.RetryDelay
	if opts.RetryDelay > 0 {
		retryDelay = opts.RetryDelay
	}

	return uploadtask.Config{
		Source:      source,
		Adapter:     m.opts.Adapter,
		Store:       m.store,
		Chunk:       chunk,
		Concurrency: concurrency,
		RetryCount:  retryCount,
		RetryDelay:  retryDelay,
	}
}

// matchesRecord implements the resume validation: name, size,
// and type must match exactly; lastModified is never checked.
func matchesRecord(want protocol.FileInfo, got uploadtask.FileSource) error {
	if want.Name != got.Name() {
		return mismatchErr(fmt.Sprintf("File name mismatch: expected %s, got %s", want.Name, got.Name()))
	}
	if want.Size != got.Size() {
		return mismatchErr(fmt.Sprintf("File size mismatch: expected %d, got %d", want.Size, got.Size()))
	}
	if want.MimeType != got.MimeType() {
		return mismatchErr(fmt.Sprintf("File type mismatch: expected %s, got %s", want.MimeType, got.MimeType()))
	}
	return nil
}

func mismatchErr(msg string) error {
	return xerr.NewCodeError(xerr.FileMismatchCode, fmt.Errorf("%s", msg))
}

// sortBySeq orders handles by registration order in place (insertion sort
// over typically-small slices; GetAllTasks is not a hot path).
func sortBySeq(handles []*TaskHandle) {
	for i := 1; i < len(handles); i++ {
		for j := i; j > 0 && handles[j-1].seq > handles[j].seq; j-- {
			handles[j-1], handles[j] = handles[j], handles[j-1]
		}
	}
}
