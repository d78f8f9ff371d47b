// Package uploadtask implements the per-file client state machine:
// one Task drives a single file from idle through hashing/uploading to a
// terminal success/error/cancelled state, coordinating two parallel
// activities (whole-file hashing and chunk upload) behind the shared
// protocol.TaskStatus state machine.
//
// The orchestration follows a plan-chunks / upload-with-bounded-
// concurrency / finalize shape, generalized from MinIO-native multipart
// upload to the four-call create/verify/uploadChunk/merge wire contract,
// adaptive chunk sizing, and content-addressed dedup.
package uploadtask

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rowantree/go-chunkvault/internal/adapter"
	"github.com/rowantree/go-chunkvault/internal/chunksize"
	"github.com/rowantree/go-chunkvault/internal/concurrency"
	"github.com/rowantree/go-chunkvault/internal/eventbus"
	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
	"github.com/rowantree/go-chunkvault/internal/progressstore"
	"github.com/rowantree/go-chunkvault/internal/protocol"
)

// defaultRetryCount and defaultRetryDelay mirror the default
// chunk-retry policy: up to three retries after the first attempt, the
// n-th retry (counting from 0) waiting retryDelay * 2^n.
const (
	defaultRetryCount = 3
	defaultRetryDelay = time.Second
)

// Config carries everything New needs to construct a Task. Exactly one of
// (fresh upload) or (ResumeTaskID set) is the expected usage; Resume*
// fields are ignored when ResumeTaskID is empty.
type Config struct {
	Source      FileSource
	Adapter     adapter.RequestAdapter
	Store       progressstore.Store
	Chunk       chunksize.Config
	Concurrency int
	RetryCount  int
	RetryDelay  time.Duration

	ResumeTaskID         string
	ResumeUploadToken    string
	ResumeUploadedChunks []int
}

// Task is one file's upload lifecycle. Exported methods are safe for
// concurrent use; internal bookkeeping is guarded by mu.
type Task struct {
	mu sync.Mutex

	id      string
	source  FileSource
	file    protocol.FileInfo
	status  protocol.TaskStatus
	chunks  []protocol.ChunkInfo
	done    map[int]bool

	uploadToken         string
	negotiatedChunkSize int64
	fileURL             string

	adapter    adapter.RequestAdapter
	store      progressstore.Store
	limiter    *concurrency.Limiter
	adjuster   *chunksize.Adjuster
	bus        *eventbus.Bus
	retryCount int
	retryDelay time.Duration

	startedAt time.Time
	cancel    context.CancelFunc

	paused    bool
	pauseCond *sync.Cond
}

// New constructs a Task in StatusIdle. It does not touch the network or
// the progress store; call Start to begin work.
func New(cfg Config) (*Task, error) {
	if cfg.Source == nil || cfg.Adapter == nil {
		return nil, xerr.NewCodeError(xerr.InvalidArgumentCode, xerr.ErrInvalidArgument)
	}

	limit := cfg.Concurrency
	if limit <= 0 {
		limit = 4
	}
	limiter, err := concurrency.New(limit)
	if err != nil {
		return nil, err
	}

	adj, err := chunksize.New(cfg.Chunk)
	if err != nil {
		return nil, err
	}

	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = defaultRetryCount
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	id := cfg.ResumeTaskID
	if id == "" {
		id = newTaskID()
	}

	done := make(map[int]bool, len(cfg.ResumeUploadedChunks))
	for _, idx := range cfg.ResumeUploadedChunks {
		done[idx] = true
	}

	t := &Task{
		id:         id,
		source:     cfg.Source,
		status:     protocol.StatusIdle,
		done:       done,
		adapter:    cfg.Adapter,
		store:      cfg.Store,
		limiter:    limiter,
		adjuster:   adj,
		bus:        eventbus.New(),
		retryCount: retryCount,
		retryDelay: retryDelay,
		uploadToken: cfg.ResumeUploadToken,
		file: protocol.FileInfo{
			Name:         cfg.Source.Name(),
			Size:         cfg.Source.Size(),
			MimeType:     cfg.Source.MimeType(),
			LastModified: cfg.Source.LastModified(),
		},
	}
	t.pauseCond = sync.NewCond(&t.mu)
	return t, nil
}

// ID returns the task's identifier, stable across pause/resume.
func (t *Task) ID() string { return t.id }

// On registers handler for event on this task's bus.
func (t *Task) On(event eventbus.Event, handler eventbus.Handler) int {
	return t.bus.On(event, handler)
}

// Off removes a handler previously registered with On.
func (t *Task) Off(event eventbus.Event, id int) {
	t.bus.Off(event, id)
}

// File returns the task's FileInfo snapshot (Name/Size/MimeType are fixed
// at construction; FileHash is set once hashing completes).
func (t *Task) File() protocol.FileInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file
}

// GetStatus returns the task's current state.
func (t *Task) GetStatus() protocol.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// GetProgress computes a Progress snapshot from the task's current state.
func (t *Task) GetProgress() protocol.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	uploaded := int64(0)
	for idx := range t.done {
		if idx < len(t.chunks) {
			uploaded += t.chunks[idx].Size()
		}
	}

	var pct float64
	if t.file.Size > 0 {
		pct = float64(uploaded) / float64(t.file.Size) * 100
	}

	var speed float64
	var remaining time.Duration
	if !t.startedAt.IsZero() {
		elapsed := time.Since(t.startedAt).Seconds()
		if elapsed > 0 {
			speed = float64(uploaded) / elapsed
		}
		if speed > 0 {
			remainingBytes := t.file.Size - uploaded
			remaining = time.Duration(float64(remainingBytes)/speed) * time.Second
		}
	}

	return protocol.Progress{
		UploadedBytes:  uploaded,
		TotalBytes:     t.file.Size,
		Percentage:     pct,
		SpeedBps:       speed,
		RemainingTime:  remaining,
		UploadedChunks: len(t.done),
		TotalChunks:    len(t.chunks),
	}
}

// transition validates and applies a state change, emitting nothing itself
// — callers emit the event that corresponds to the transition. A task
// already in a terminal state (success/error/cancelled) never transitions
// again, even into the same terminal state: CanTransition's prev==next
// no-op allowance is for observing a status twice, not for re-entering
// Cancel/finish and re-firing their fire-once events.
func (t *Task) transition(next protocol.TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return xerr.NewCodeError(xerr.InvalidTransitionCode, xerr.ErrInvalidTransition)
	}
	if !protocol.CanTransition(t.status, next) {
		return xerr.NewCodeError(xerr.InvalidTransitionCode, xerr.ErrInvalidTransition)
	}
	t.status = next
	return nil
}

func (t *Task) setStatus(s protocol.TaskStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// newTaskID mints a fresh task identifier, independent of the server's own
// uuid.NewString fileID (internal/server/uploadservice.CreateFile).
func newTaskID() string {
	return uuid.NewString()
}

func (t *Task) logFields() []zap.Field {
	return []zap.Field{zap.String("taskId", t.id), zap.String("file", t.file.Name)}
}

func (t *Task) emitError(err error) {
	t.setStatus(protocol.StatusError)
	t.bus.Emit(eventbus.EventError, eventbus.ErrorPayload{Err: err})
	logger.Error("uploadtask: failed", append(t.logFields(), zap.Error(err))...)
}
