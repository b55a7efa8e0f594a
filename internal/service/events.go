package service

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventDiscoveryStarted   EventType = "discovery_started"
	EventDiscoveryProgress  EventType = "discovery_progress"
	EventDiscoveryCompleted EventType = "discovery_completed"
	EventSharedCompleted    EventType = "shared_completed"
	EventCacheInvalidated   EventType = "cache_invalidated"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventName names the event on SSE streams.
func (e Event) EventName() string {
	return string(e.Type)
}

// Progress is the payload of discovery progress events.
type Progress struct {
	QueryID   string `json:"query_id"`
	Direction string `json:"direction"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// Summary is the payload of completion events.
type Summary struct {
	QueryID    string   `json:"query_id"`
	Direction  string   `json:"direction"`
	Seeds      int      `json:"seeds"`
	Missing    []string `json:"missing,omitempty"`
	Neighbors  int      `json:"neighbors"`
	Nodes      int      `json:"nodes"`
	Edges      int      `json:"edges"`
	DurationMS int64    `json:"duration_ms"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Publish sends an event to all subscribers. A nil bus drops the event.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
