// Package events provides a small in-process pub/sub bus used to stream
// pipeline and scheduler activity to HTTP clients (§6 `/events/stream`).
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType names one kind of event on the bus.
type EventType string

const (
	// JobStarted/JobProgress/JobCompleted/JobFailed mirror
	// internal/work's EventJobStarted/.../EventJobFailed string constants
	// (the Emit method below forwards them verbatim as EventType values).
	JobStarted   EventType = "JobStarted"
	JobProgress  EventType = "JobProgress"
	JobCompleted EventType = "JobCompleted"
	JobFailed    EventType = "JobFailed"

	// GapDetected/GapFilled are emitted by the gap-fill scheduled job
	// (§4.7, §6) as it repairs missing trading days.
	GapDetected EventType = "GapDetected"
	GapFilled   EventType = "GapFilled"

	// SystemStatusChanged is emitted whenever /system/status computes a
	// fresh snapshot worth pushing to connected clients.
	SystemStatusChanged EventType = "SystemStatusChanged"

	// LogFileChanged is emitted by the server's log-file watcher.
	LogFileChanged EventType = "LogFileChanged"
)

// Event is one published occurrence, carrying its data as a plain map so
// it can always be JSON-encoded and forwarded over SSE without knowing
// the concrete payload type ahead of time.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine; slow handlers should hand off to a buffered
// channel themselves (see server.EventsStreamHandler).
type Handler func(*Event)

// Bus is a simple fan-out publish/subscribe registry.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[EventType][]Handler)}
}

// Subscribe registers h to run whenever an event of type t is published.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], h)
}

// Emit satisfies internal/work.EventEmitter: event is a string event name
// (one of internal/work's EventJob* constants) and data is typically a
// work.ProgressEvent struct, marshaled to a map so Event.Data stays
// transport-agnostic.
func (b *Bus) Emit(event string, data any) {
	b.publish(EventType(event), "pipeline", toMap(data))
}

// EmitTyped publishes an event with an explicit module and data map,
// for callers outside the narrow work.EventEmitter contract (the gap-fill
// job, the system-status poller).
func (b *Bus) EmitTyped(t EventType, module string, data map[string]interface{}) {
	b.publish(t, module, data)
}

func (b *Bus) publish(t EventType, module string, data map[string]interface{}) {
	ev := &Event{Type: t, Timestamp: time.Now(), Module: module, Data: data}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[t]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

func toMap(data any) map[string]interface{} {
	if data == nil {
		return nil
	}
	if m, ok := data.(map[string]interface{}); ok {
		return m
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]interface{}{"value": data}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]interface{}{"value": data}
	}
	return m
}
