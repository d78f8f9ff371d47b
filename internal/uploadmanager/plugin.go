package uploadmanager

import (
	"go.uber.org/zap"

	"github.com/rowantree/go-chunkvault/internal/eventbus"
	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"github.com/rowantree/go-chunkvault/internal/protocol"
)

// Plugin is a handler bundle a Manager fans every task's lifecycle events
// out to. Every method is optional — a Plugin implements only the
// hooks it cares about, the same shape as a swappable-backend constructor
// (NewXRepository(db), NewXStorage(cfg)) generalized from "one backend
// chosen at startup" to "zero or more observers chained at startup".
type Plugin interface {
	// Name identifies the plugin in logs. Duplicate names are permitted.
	Name() string
}

// Installer is implemented by a Plugin that needs a one-time setup step
// against the Manager itself (e.g. to stash a reference for later queries).
type Installer interface {
	Install(m *Manager) error
}

// TaskCreatedHook fires when CreateTask or ResumeTask returns a new Task.
type TaskCreatedHook interface {
	OnTaskCreated(task *TaskHandle)
}

// TaskStartHook fires on the task's start event.
type TaskStartHook interface {
	OnTaskStart(taskID string)
}

// TaskProgressHook fires on every progress event.
type TaskProgressHook interface {
	OnTaskProgress(taskID string, progress protocol.Progress)
}

// TaskSuccessHook fires once, when a task reaches StatusSuccess.
type TaskSuccessHook interface {
	OnTaskSuccess(taskID string, fileURL string)
}

// TaskErrorHook fires once, when a task reaches StatusError.
type TaskErrorHook interface {
	OnTaskError(taskID string, err error)
}

// TaskPauseHook fires on the task's pause event.
type TaskPauseHook interface {
	OnTaskPause(taskID string)
}

// TaskResumeHook fires on the task's resume event.
type TaskResumeHook interface {
	OnTaskResume(taskID string)
}

// TaskCancelHook fires once, when a task reaches StatusCancelled.
type TaskCancelHook interface {
	OnTaskCancel(taskID string)
}

// Use registers a plugin. Order of invocation matches order of
// registration; duplicate names are permitted.
func (m *Manager) Use(p Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if installer, ok := p.(Installer); ok {
		if err := safeInstall(installer, m); err != nil {
			return err
		}
	}
	m.plugins = append(m.plugins, p)
	return nil
}

// safeInstall and dispatchX below isolate a single misbehaving plugin:
// a panic or returned error is logged and swallowed, never propagated to
// the caller or to peer plugins.
func safeInstall(installer Installer, m *Manager) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("uploadmanager: plugin install panicked", zap.Any("recover", r))
			err = nil
		}
	}()
	if ierr := installer.Install(m); ierr != nil {
		logger.Error("uploadmanager: plugin install failed", zap.Error(ierr))
	}
	return nil
}

func (m *Manager) dispatch(fn func(p Plugin)) {
	m.mu.Lock()
	plugins := append([]Plugin(nil), m.plugins...)
	m.mu.Unlock()

	for _, p := range plugins {
		invokeHook(p, fn)
	}
}

func invokeHook(p Plugin, fn func(p Plugin)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("uploadmanager: plugin hook panicked",
				zap.String("plugin", p.Name()), zap.Any("recover", r))
		}
	}()
	fn(p)
}

// wirePluginFanout subscribes the Manager's dispatch-to-plugins logic to a
// freshly created task's event bus. Called once per task, from register.
func (m *Manager) wirePluginFanout(handle *TaskHandle) {
	task := handle.task

	task.On(eventbus.EventStart, func(any) {
		m.dispatch(func(p Plugin) {
			if h, ok := p.(TaskStartHook); ok {
				h.OnTaskStart(handle.ID)
			}
		})
	})
	task.On(eventbus.EventProgress, func(payload any) {
		progress := task.GetProgress()
		m.dispatch(func(p Plugin) {
			if h, ok := p.(TaskProgressHook); ok {
				h.OnTaskProgress(handle.ID, progress)
			}
		})
	})
	task.On(eventbus.EventSuccess, func(payload any) {
		fileURL := ""
		if sp, ok := payload.(eventbus.SuccessPayload); ok {
			fileURL = sp.FileURL
		}
		m.dispatch(func(p Plugin) {
			if h, ok := p.(TaskSuccessHook); ok {
				h.OnTaskSuccess(handle.ID, fileURL)
			}
		})
	})
	task.On(eventbus.EventError, func(payload any) {
		var cause error
		if ep, ok := payload.(eventbus.ErrorPayload); ok {
			cause = ep.Err
		}
		m.dispatch(func(p Plugin) {
			if h, ok := p.(TaskErrorHook); ok {
				h.OnTaskError(handle.ID, cause)
			}
		})
	})
	task.On(eventbus.EventPause, func(any) {
		m.dispatch(func(p Plugin) {
			if h, ok := p.(TaskPauseHook); ok {
				h.OnTaskPause(handle.ID)
			}
		})
	})
	task.On(eventbus.EventResume, func(any) {
		m.dispatch(func(p Plugin) {
			if h, ok := p.(TaskResumeHook); ok {
				h.OnTaskResume(handle.ID)
			}
		})
	})
	task.On(eventbus.EventCancel, func(any) {
		m.dispatch(func(p Plugin) {
			if h, ok := p.(TaskCancelHook); ok {
				h.OnTaskCancel(handle.ID)
			}
		})
	})

	m.dispatch(func(p Plugin) {
		if h, ok := p.(TaskCreatedHook); ok {
			h.OnTaskCreated(handle)
		}
	})
}
