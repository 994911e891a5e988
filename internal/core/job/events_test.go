package job

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishAssignsSequence(t *testing.T) {
	bus := NewEventBus(10)
	id := uuid.New()

	first := bus.Publish(Event{JobID: id, Type: EventTypeLog, Message: "a"})
	second := bus.Publish(Event{JobID: id, Type: EventTypeLog, Message: "b"})

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.False(t, first.Timestamp.IsZero())

	since := bus.Since(id, 1)
	require.Len(t, since, 1)
	assert.Equal(t, "b", since[0].Message)
}

func TestEventBus_TrimsOldEvents(t *testing.T) {
	bus := NewEventBus(3)
	for range 5 {
		bus.Publish(Event{JobID: uuid.New(), Type: EventTypeLog})
	}

	all := bus.Since(uuid.Nil, 0)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].Seq)
	assert.Equal(t, int64(5), all[2].Seq)
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus(0)
	ch, unsubscribe := bus.Subscribe(4)

	bus.Publish(Event{Type: EventTypeState, State: StateValidating})
	ev := <-ch
	assert.Equal(t, StateValidating, ev.State)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)

	// 解除後の発行はパニックしない
	bus.Publish(Event{Type: EventTypeLog})
}

func TestEventBus_EmptySince(t *testing.T) {
	assert.Nil(t, NewEventBus(1).Since(uuid.Nil, 0))
}
