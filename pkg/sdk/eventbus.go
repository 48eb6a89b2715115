package sdk

import (
	"sync"
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventTypeConfigReload is triggered after the configuration has been reloaded.
	EventTypeConfigReload EventType = "config_reload"
	// EventTypePipelineFatal is triggered when the pipeline stops on an unrecoverable error.
	EventTypePipelineFatal EventType = "pipeline_fatal"
)

// Event represents a system event.
type Event struct {
	Type      EventType
	Payload   any
	Timestamp int64
	Source    string
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, source string, payload any) Event {
	return Event{
		Type:      eventType,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event)

// EventBus defines the interface for the system event bus.
type EventBus interface {
	// Subscribe registers a handler for a specific event type and returns a function that removes it.
	Subscribe(eventType EventType, handler EventHandler) (unsubscribe func())
	// Publish publishes an event to all subscribers.
	Publish(event Event)
}

type subscription struct {
	id      uint64
	handler EventHandler
}

// DefaultEventBus is a simple in-memory event bus implementation.
type DefaultEventBus struct {
	handlers map[EventType][]subscription
	nextID   uint64
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewEventBus creates a new DefaultEventBus.
func NewEventBus() *DefaultEventBus {
	return &DefaultEventBus{
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *DefaultEventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(eventType, id) })
	}
}

func (b *DefaultEventBus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

// Publish publishes an event to all subscribers.
func (b *DefaultEventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.handlers[event.Type] {
		// Execute handler in a separate goroutine to avoid blocking the publisher
		b.wg.Add(1)
		go func(h EventHandler) {
			defer b.wg.Done()
			h(event)
		}(s.handler)
	}
}

// Wait blocks until every handler started by Publish has returned.
// Wait 阻塞直到 Publish 启动的所有处理函数返回。
func (b *DefaultEventBus) Wait() {
	b.wg.Wait()
}
