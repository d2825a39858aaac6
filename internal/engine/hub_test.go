package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryHubDeliversToSubscriber(t *testing.T) {
	hub := NewMemoryHub(4)
	sub := hub.Subscribe("exec1")
	defer hub.Unsubscribe(sub)

	hub.Publish(Event{Type: EventExecutionStarted, ExecutionID: "exec1"})

	select {
	case ev := <-sub.Events:
		assert.Equal(t, EventExecutionStarted, ev.Type)
	default:
		t.Fatal("expected an event to be delivered")
	}
}

func TestMemoryHubIgnoresOtherExecutions(t *testing.T) {
	hub := NewMemoryHub(4)
	sub := hub.Subscribe("exec1")
	defer hub.Unsubscribe(sub)

	hub.Publish(Event{Type: EventExecutionStarted, ExecutionID: "exec2"})

	select {
	case ev := <-sub.Events:
		t.Fatalf("did not expect delivery, got %v", ev)
	default:
	}
}

func TestMemoryHubDoesNotBlockOnFullSubscriber(t *testing.T) {
	hub := NewMemoryHub(1)
	sub := hub.Subscribe("exec1")
	defer hub.Unsubscribe(sub)

	hub.Publish(Event{Type: EventExecutionStarted, ExecutionID: "exec1"})
	hub.Publish(Event{Type: EventExecutionCompleted, ExecutionID: "exec1"})

	ev := <-sub.Events
	assert.Equal(t, EventExecutionStarted, ev.Type, "expected the first buffered event to survive")
}

func TestMemoryHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewMemoryHub(4)
	sub := hub.Subscribe("exec1")
	hub.Unsubscribe(sub)

	hub.Publish(Event{Type: EventExecutionStarted, ExecutionID: "exec1"})

	_, ok := <-sub.Events
	assert.False(t, ok, "expected the channel to be closed after unsubscribe")
}

func TestRecorderKeepsPublishOrder(t *testing.T) {
	r := NewRecorder(0)
	r.Publish(Event{Type: EventExecutionStarted, ExecutionID: "exec1"})
	r.Publish(Event{Type: EventNodeExecutionStarted, ExecutionID: "exec1", NodeID: "A"})
	r.Publish(Event{Type: EventExecutionCompleted, ExecutionID: "exec1"})

	events := r.ForExecution("exec1")
	is := assert.New(t)
	is.Len(events, 3)
	is.Equal(EventExecutionStarted, events[0].Type)
	is.Equal(EventExecutionCompleted, events[2].Type)
}

func TestRecorderBounded(t *testing.T) {
	r := NewRecorder(2)
	r.Publish(Event{Type: EventExecutionStarted, ExecutionID: "exec1"})
	r.Publish(Event{Type: EventNodeExecutionStarted, ExecutionID: "exec1"})
	r.Publish(Event{Type: EventExecutionCompleted, ExecutionID: "exec1"})

	events := r.Events()
	assert.Len(t, events, 2, "expected the recorder to drop the oldest event")
	assert.Equal(t, EventNodeExecutionStarted, events[0].Type, "expected the oldest event to have been dropped")
}
