// Package logevents implements the reference logger plugin: one
// structured zap log line per lifecycle event, with each event kind
// individually toggleable.
//
// It is a thin, config-driven consumer of internal/pkg/logger rather
// than a new logging backend.
package logevents

import (
	"go.uber.org/zap"

	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"github.com/rowantree/go-chunkvault/internal/protocol"
	"github.com/rowantree/go-chunkvault/internal/uploadmanager"
)

// Config toggles which event kinds get a log line. A zero Config logs
// everything (every field defaults to false, which each hook reads as
// "not explicitly disabled").
type Config struct {
	DisableCreated  bool
	DisableStart    bool
	DisableProgress bool
	DisableSuccess  bool
	DisableError    bool
	DisablePause    bool
	DisableResume   bool
	DisableCancel   bool
}

// Plugin logs one line per enabled lifecycle event. It never returns an
// error and never panics: a malformed payload just gets logged with
// whatever fields it does have, matching the "tolerate
// out-of-order events without crashing".
type Plugin struct {
	cfg Config
}

// New constructs a logger plugin with cfg controlling which events log.
func New(cfg Config) *Plugin {
	return &Plugin{cfg: cfg}
}

// Name identifies this plugin in diagnostic output.
func (p *Plugin) Name() string { return "logevents" }

var _ uploadmanager.TaskCreatedHook = (*Plugin)(nil)
var _ uploadmanager.TaskStartHook = (*Plugin)(nil)
var _ uploadmanager.TaskProgressHook = (*Plugin)(nil)
var _ uploadmanager.TaskSuccessHook = (*Plugin)(nil)
var _ uploadmanager.TaskErrorHook = (*Plugin)(nil)
var _ uploadmanager.TaskPauseHook = (*Plugin)(nil)
var _ uploadmanager.TaskResumeHook = (*Plugin)(nil)
var _ uploadmanager.TaskCancelHook = (*Plugin)(nil)

func (p *Plugin) OnTaskCreated(handle *uploadmanager.TaskHandle) {
	if p.cfg.DisableCreated {
		return
	}
	file := handle.File()
	logger.Info("upload: task created",
		zap.String("taskId", handle.ID),
		zap.String("file", file.Name),
		zap.Int64("size", file.Size))
}

func (p *Plugin) OnTaskStart(taskID string) {
	if p.cfg.DisableStart {
		return
	}
	logger.Info("upload: task started", zap.String("taskId", taskID))
}

func (p *Plugin) OnTaskProgress(taskID string, progress protocol.Progress) {
	if p.cfg.DisableProgress {
		return
	}
	logger.Debug("upload: progress",
		zap.String("taskId", taskID),
		zap.Float64("percentage", progress.Percentage),
		zap.Float64("speed", progress.SpeedBps))
}

func (p *Plugin) OnTaskSuccess(taskID string, fileURL string) {
	if p.cfg.DisableSuccess {
		return
	}
	logger.Info("upload: task succeeded", zap.String("taskId", taskID), zap.String("fileUrl", fileURL))
}

func (p *Plugin) OnTaskError(taskID string, err error) {
	if p.cfg.DisableError {
		return
	}
	logger.Error("upload: task failed", zap.String("taskId", taskID), zap.Error(err))
}

func (p *Plugin) OnTaskPause(taskID string) {
	if p.cfg.DisablePause {
		return
	}
	logger.Info("upload: task paused", zap.String("taskId", taskID))
}

func (p *Plugin) OnTaskResume(taskID string) {
	if p.cfg.DisableResume {
		return
	}
	logger.Info("upload: task resumed", zap.String("taskId", taskID))
}

func (p *Plugin) OnTaskCancel(taskID string) {
	if p.cfg.DisableCancel {
		return
	}
	logger.Info("upload: task cancelled", zap.String("taskId", taskID))
}
