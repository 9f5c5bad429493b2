// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for the voice core
const (
	// Session events
	EventTypeSessionStateChanged EventType = "session.state_changed"
	EventTypeSessionError        EventType = "session.error"
	EventTypeModeChanged         EventType = "session.mode_changed"

	// Wake events
	EventTypeWakeWordDetected EventType = "wake.detected"

	// Audio events
	EventTypeListeningStarted EventType = "audio.listening_started"
	EventTypeListeningStopped EventType = "audio.listening_stopped"
	EventTypeSpeakingStarted  EventType = "audio.speaking_started"
	EventTypeSpeakingStopped  EventType = "audio.speaking_stopped"
	EventTypeAudioLevel       EventType = "audio.level"

	// Emotion events
	EventTypeEmotionSample      EventType = "emotion.sample"
	EventTypeEmotionUnavailable EventType = "emotion.unavailable"

	// Proactive engagement events
	EventTypeProactiveMessage EventType = "engage.message"

	// Greeting events
	EventTypeGreetingReady EventType = "greeting.ready"
)

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

type subscription struct {
	id      int
	handler Handler
}

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   int
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe adds a handler for an event type and returns a subscription id
// that can be passed to Unsubscribe.
func (b *EventBus) Subscribe(eventType EventType, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscription{
		id:      b.nextID,
		handler: handler,
	})
	return b.nextID
}

// SubscribeMultiple adds a handler for multiple event types and returns the
// subscription ids in the same order.
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) []int {
	ids := make([]int, 0, len(eventTypes))
	for _, et := range eventTypes {
		ids = append(ids, b.Subscribe(et, handler))
	}
	return ids
}

// Unsubscribe removes a previously registered handler. Removing an unknown id
// is a no-op, so teardown paths can call it unconditionally.
func (b *EventBus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for et, subs := range b.handlers {
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[et] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish sends an event to all subscribed handlers
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Type]))
	copy(subs, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, sub := range subs {
		// Call handlers in goroutines to avoid blocking
		go sub.handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete
func (b *EventBus) PublishSync(event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Type]))
	copy(subs, b.handlers[event.Type])
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(sub.handler)
	}
	wg.Wait()
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]subscription)
	b.nextID = 0
}
