// Package stats implements the reference statistics plugin: it
// counts total/success/error/cancel outcomes, sums uploaded bytes and
// elapsed per-task time, and derives averageSpeed and successRate. An
// optional ESSink mirrors every terminal event into Elasticsearch for
// offline analysis.
//
// internal/setup/elasticsearch.go supplies the underlying client; this
// plugin is the concrete upload-path consumer of it.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"github.com/rowantree/go-chunkvault/internal/protocol"
	"github.com/rowantree/go-chunkvault/internal/uploadmanager"
	"go.uber.org/zap"
)

// Snapshot is the aggregate Plugin.Snapshot returns.
type Snapshot struct {
	TotalTasks   int
	Success      int
	Errors       int
	Cancelled    int
	TotalBytes   int64
	TotalElapsed time.Duration
}

// AverageSpeed returns totalBytes/totalTime in bytes/second, or 0 if no
// elapsed time has accumulated yet.
func (s Snapshot) AverageSpeed() float64 {
	secs := s.TotalElapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.TotalBytes) / secs
}

// SuccessRate returns successes/(successes+errors+cancels), or 0 if no
// terminal outcome has been observed yet.
func (s Snapshot) SuccessRate() float64 {
	denom := s.Success + s.Errors + s.Cancelled
	if denom == 0 {
		return 0
	}
	return float64(s.Success) / float64(denom)
}

// ESSink is the optional Elasticsearch mirror for terminal lifecycle
// events. internal/setup/elasticsearch.go's InitElasticsearchClient
// supplies the concrete *elasticsearch.Client a caller wraps with
// NewESSink.
type ESSink interface {
	IndexEvent(ctx context.Context, doc EventDoc) error
}

// EventDoc is one terminal-event record sent to ESSink.
type EventDoc struct {
	TaskID    string  `json:"taskId"`
	Event     string  `json:"event"`
	Bytes     int64   `json:"bytes"`
	ElapsedMs int64   `json:"elapsedMs"`
	Error     string  `json:"error,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// Plugin tallies outcomes across every task a Manager registers it on. The
// zero value is not usable; use New. Every hook tolerates out-of-order
// delivery (e.g. a progress event before the matching start event) without
// panicking — a task absent from startedAt just contributes a zero elapsed
// time.
type Plugin struct {
	sink ESSink
	now  func() time.Time

	mu        sync.Mutex
	startedAt map[string]time.Time
	lastBytes map[string]int64
	snap      Snapshot
}

// New constructs a statistics plugin. sink may be nil to disable the
// Elasticsearch mirror. now defaults to time.Now if nil (tests may override
// it for deterministic elapsed-time assertions).
func New(sink ESSink, now func() time.Time) *Plugin {
	if now == nil {
		now = time.Now
	}
	return &Plugin{
		sink:      sink,
		now:       now,
		startedAt: make(map[string]time.Time),
		lastBytes: make(map[string]int64),
	}
}

// Name identifies this plugin in diagnostic output.
func (p *Plugin) Name() string { return "stats" }

// Snapshot returns a copy of the plugin's current aggregate counters.
func (p *Plugin) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

var _ uploadmanager.TaskStartHook = (*Plugin)(nil)
var _ uploadmanager.TaskProgressHook = (*Plugin)(nil)
var _ uploadmanager.TaskSuccessHook = (*Plugin)(nil)
var _ uploadmanager.TaskErrorHook = (*Plugin)(nil)
var _ uploadmanager.TaskCancelHook = (*Plugin)(nil)

func (p *Plugin) OnTaskStart(taskID string) {
	p.mu.Lock()
	p.startedAt[taskID] = p.now()
	p.snap.TotalTasks++
	p.mu.Unlock()
}

func (p *Plugin) OnTaskProgress(taskID string, progress protocol.Progress) {
	p.mu.Lock()
	p.lastBytes[taskID] = progress.UploadedBytes
	p.mu.Unlock()
}

func (p *Plugin) OnTaskSuccess(taskID string, fileURL string) {
	bytes, elapsed := p.finish(taskID)
	p.mu.Lock()
	p.snap.Success++
	p.snap.TotalBytes += bytes
	p.snap.TotalElapsed += elapsed
	p.mu.Unlock()
	p.index(taskID, "success", bytes, elapsed, nil)
}

func (p *Plugin) OnTaskError(taskID string, err error) {
	bytes, elapsed := p.finish(taskID)
	p.mu.Lock()
	p.snap.Errors++
	p.snap.TotalElapsed += elapsed
	p.mu.Unlock()
	p.index(taskID, "error", bytes, elapsed, err)
}

func (p *Plugin) OnTaskCancel(taskID string) {
	bytes, elapsed := p.finish(taskID)
	p.mu.Lock()
	p.snap.Cancelled++
	p.snap.TotalElapsed += elapsed
	p.mu.Unlock()
	p.index(taskID, "cancel", bytes, elapsed, nil)
}

// finish removes taskID's tracking state and returns its final
// known-uploaded-bytes and elapsed time since start (zero if start was
// never observed).
func (p *Plugin) finish(taskID string) (bytes int64, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bytes = p.lastBytes[taskID]
	if start, ok := p.startedAt[taskID]; ok {
		elapsed = p.now().Sub(start)
	}
	delete(p.startedAt, taskID)
	delete(p.lastBytes, taskID)
	return bytes, elapsed
}

func (p *Plugin) index(taskID, event string, bytes int64, elapsed time.Duration, cause error) {
	if p.sink == nil {
		return
	}
	doc := EventDoc{
		TaskID:    taskID,
		Event:     event,
		Bytes:     bytes,
		ElapsedMs: elapsed.Milliseconds(),
		Timestamp: p.now().UnixMilli(),
	}
	if cause != nil {
		doc.Error = cause.Error()
	}
	if err := p.sink.IndexEvent(context.Background(), doc); err != nil {
		logger.Warn("stats: index event failed", zap.String("taskId", taskID), zap.Error(err))
	}
}
