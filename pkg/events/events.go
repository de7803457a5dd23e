package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	// EventTaskComplete reports the final result of an accepted task
	EventTaskComplete EventType = "task.complete"

	// EventOwner is a generic nym-addressed event (contact activity,
	// account activity) forwarded to the owning connection verbatim
	EventOwner EventType = "owner.event"

	// EventSessionStarted is emitted when a session context comes up
	EventSessionStarted EventType = "session.started"

	// EventSessionRefreshed is emitted after a client session refresh
	EventSessionRefreshed EventType = "session.refreshed"
)

// Event is a single notification emitted by command execution or by the
// sessions it manages
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time

	// Task-completion fields
	TaskID  string
	Success bool

	// Owner-event fields: Payload and Instance are forwarded to the
	// client as opaque frames
	Owner    string
	Payload  []byte
	Instance []byte
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

// PublishTaskComplete publishes a task-completion event
func (b *Broker) PublishTaskComplete(taskID string, success bool) {
	b.Publish(&Event{
		Type:    EventTaskComplete,
		TaskID:  taskID,
		Success: success,
	})
}

// PublishOwnerEvent publishes a nym-addressed event
func (b *Broker) PublishOwnerEvent(owner string, payload, instance []byte) {
	b.Publish(&Event{
		Type:     EventOwner,
		Owner:    owner,
		Payload:  payload,
		Instance: instance,
	})
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
