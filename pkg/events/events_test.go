package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveEvent(t *testing.T, sub Subscriber) *Event {
	t.Helper()

	select {
	case event := <-sub:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBrokerDeliversToSubscriber(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.PublishTaskComplete("task-1", true)

	event := receiveEvent(t, sub)
	assert.Equal(t, EventTaskComplete, event.Type)
	assert.Equal(t, "task-1", event.TaskID)
	assert.True(t, event.Success)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestBrokerOwnerEvent(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.PublishOwnerEvent("nym-1", []byte("payload"), []byte("instance"))

	event := receiveEvent(t, sub)
	assert.Equal(t, EventOwner, event.Type)
	assert.Equal(t, "nym-1", event.Owner)
	assert.Equal(t, []byte("payload"), event.Payload)
	assert.Equal(t, []byte("instance"), event.Instance)
}

func TestBrokerFanOut(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	first := broker.Subscribe()
	second := broker.Subscribe()
	defer broker.Unsubscribe(first)
	defer broker.Unsubscribe(second)

	require.Equal(t, 2, broker.SubscriberCount())

	broker.PublishTaskComplete("task-1", false)

	assert.Equal(t, "task-1", receiveEvent(t, first).TaskID)
	assert.Equal(t, "task-1", receiveEvent(t, second).TaskID)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)

	_, open := <-sub
	assert.False(t, open)
	assert.Equal(t, 0, broker.SubscriberCount())
}
