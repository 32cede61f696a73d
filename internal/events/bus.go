package events

import "sync"

// Type names a job lifecycle event.
type Type string

const (
	// JobAdded fires after a job has been durably persisted.
	JobAdded Type = "job:added"
	// JobCompleted fires after a job submission was accepted remotely.
	JobCompleted Type = "job:completed"
	// JobFailed fires after a job submission attempt failed.
	JobFailed Type = "job:failed"
	// SyncCompleted fires at the end of every flush cycle, including
	// cycles with partial failures.
	SyncCompleted Type = "queue:sync-completed"
)

// Event carries a lifecycle notification to subscribers.
type Event struct {
	Type    Type
	JobID   string
	Owner   string
	Payload any
}

// Handler receives events synchronously on the emitting goroutine.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is an in-process pub/sub service. Delivery is synchronous and ordered
// by subscription; there is no persistence or replay. Construct one per
// queue instance and inject it wherever lifecycle events are produced or
// consumed.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Type][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Type][]subscription)}
}

// On registers a handler for a single event type and returns an
// unsubscribe function. Unsubscribing twice is harmless.
func (b *Bus) On(eventType Type, handler Handler) func() {
	if handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() { b.remove(eventType, id) }
}

// OnMultiple registers one handler for several event types and returns a
// single unsubscribe function covering all of them.
func (b *Bus) OnMultiple(eventTypes []Type, handler Handler) func() {
	cancels := make([]func(), 0, len(eventTypes))
	for _, eventType := range eventTypes {
		cancels = append(cancels, b.On(eventType, handler))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// Emit delivers the event to every current subscriber in subscription order.
// A subscriber that attaches during delivery does not see the in-flight event.
func (b *Bus) Emit(event Event) {
	b.mu.Lock()
	subs := b.subs[event.Type]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	b.mu.Unlock()

	for _, sub := range snapshot {
		sub.handler(event)
	}
}

func (b *Bus) remove(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
