// Package eventbus implements the typed lifecycle-event pub/sub, an
// Upload Task uses to notify the Upload Manager's plugins and any UI
// adapter. Handlers run synchronously, in registration order, and a
// panicking handler never takes down its peers.
//
// No in-process pub/sub library is warranted here: a cross-process
// broker like RabbitMQ solves a different problem from in-process typed
// events. This is a second stdlib-only package (sync.RWMutex + map of
// slices), alongside internal/concurrency.
package eventbus

import (
	"sync"

	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"go.uber.org/zap"
)

// Event is the lifecycle-event name set.
type Event string

const (
	EventStart         Event = "start"
	EventProgress      Event = "progress"
	EventChunkSuccess  Event = "chunkSuccess"
	EventChunkError    Event = "chunkError"
	EventHashProgress  Event = "hashProgress"
	EventHashComplete  Event = "hashComplete"
	EventSuccess       Event = "success"
	EventError         Event = "error"
	EventPause         Event = "pause"
	EventResume        Event = "resume"
	EventCancel        Event = "cancel"
)

// Wildcard subscribes a Handler to every event emitted on the bus.
const Wildcard Event = "*"

// Handler receives an emitted event's payload. The concrete shape of
// payload depends on event (e.g. ProgressPayload for EventProgress); see
// the payload types below.
type Handler func(payload any)

// Bus is a typed topic bus. The zero value is not usable; use New.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Event][]Handler)}
}

// On registers handler for event, returning a subscription id that Off can
// use to remove exactly this registration. Registration order is preserved
// for delivery order.
func (b *Bus) On(event Event, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
	return len(b.handlers[event]) - 1
}

// Off removes the handler previously returned by On for event at id. A
// removed slot is nilled rather than spliced out, so ids already handed out
// for later registrations on the same event stay valid.
func (b *Bus) Off(event Event, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := b.handlers[event]
	if id < 0 || id >= len(hs) {
		return
	}
	hs[id] = nil
}

// Emit calls every handler registered for event, then every handler
// registered for Wildcard, in registration order. Each handler is invoked
// in its own recover()-guarded frame so a panicking handler never prevents
// the next handler (or the wildcard handlers) from running.
func (b *Bus) Emit(event Event, payload any) {
	b.mu.RLock()
	targeted := append([]Handler(nil), b.handlers[event]...)
	wild := append([]Handler(nil), b.handlers[Wildcard]...)
	b.mu.RUnlock()

	for _, h := range targeted {
		invoke(event, h, payload)
	}
	for _, h := range wild {
		invoke(event, h, payload)
	}
}

func invoke(event Event, h Handler, payload any) {
	if h == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("eventbus: handler panicked", zap.String("event", string(event)), zap.Any("recover", r))
		}
	}()
	h(payload)
}

// ProgressPayload is EventProgress's payload.
type ProgressPayload struct {
	Progress float64
	Speed    float64
}

// ChunkSuccessPayload is EventChunkSuccess's payload.
type ChunkSuccessPayload struct {
	ChunkIndex int
}

// ChunkErrorPayload is EventChunkError's payload.
type ChunkErrorPayload struct {
	ChunkIndex int
	Err        error
}

// HashCompletePayload is EventHashComplete's payload.
type HashCompletePayload struct {
	Hash string
}

// SuccessPayload is EventSuccess's payload.
type SuccessPayload struct {
	FileURL string
}

// ErrorPayload is EventError's payload.
type ErrorPayload struct {
	Err error
}
