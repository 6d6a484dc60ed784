package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishOutputDeliversToMatchingSubscriber(t *testing.T) {
	b := New()
	_, ch := b.Subscribe(Filter{Kinds: []string{"output"}}, 4)

	b.PublishOutput("agent-1", nil, []byte("hello"))

	select {
	case item := <-ch:
		assert.Equal(t, KindOutput, item.Event.Kind)
		assert.Equal(t, "agent-1", item.Event.AgentID)
		assert.Equal(t, []byte("hello"), item.Event.Data)
		assert.Equal(t, 0, item.Lagged)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for output event")
	}
}

func TestFilterExcludesNonMatchingKind(t *testing.T) {
	b := New()
	_, ch := b.Subscribe(Filter{Kinds: []string{"spawned", "exited"}}, 4)

	b.PublishOutput("agent-1", nil, []byte("hello"))

	select {
	case item := <-ch:
		t.Fatalf("unexpected delivery: %+v", item)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilterByIDAndLabel(t *testing.T) {
	b := New()
	_, chID := b.Subscribe(Filter{IDs: []string{"agent-2"}}, 4)
	_, chLabel := b.Subscribe(Filter{Labels: []string{"build"}}, 4)

	b.PublishOutput("agent-1", []string{"test"}, []byte("x"))
	b.PublishOutput("agent-2", nil, []byte("y"))
	b.PublishOutput("agent-3", []string{"build", "ci"}, []byte("z"))

	select {
	case item := <-chID:
		assert.Equal(t, "agent-2", item.Event.AgentID)
	case <-time.After(time.Second):
		t.Fatal("id subscriber got nothing")
	}

	select {
	case item := <-chLabel:
		assert.Equal(t, "agent-3", item.Event.AgentID)
	case <-time.After(time.Second):
		t.Fatal("label subscriber got nothing")
	}
}

func TestDropOldestOnFullQueueSetsLagged(t *testing.T) {
	b := New()
	_, ch := b.Subscribe(Filter{}, 2)

	b.PublishOutput("a", nil, []byte("1"))
	b.PublishOutput("a", nil, []byte("2"))
	b.PublishOutput("a", nil, []byte("3")) // queue full: drops "1", pushes "3"

	first := <-ch
	assert.Equal(t, []byte("2"), first.Event.Data)

	second := <-ch
	assert.Equal(t, []byte("3"), second.Event.Data)
	assert.Equal(t, 1, second.Lagged)
}

func TestPublishLifecycleWaitsForSlowSubscriberBeforeDropping(t *testing.T) {
	b := New()
	_, ch := b.Subscribe(Filter{}, 1)
	b.PublishOutput("a", nil, []byte("filler")) // fills the size-1 queue

	go func() {
		time.Sleep(10 * time.Millisecond)
		<-ch // drain in time for the blocking send to succeed, no drop
	}()

	start := time.Now()
	b.PublishLifecycle(Event{Kind: KindExited, AgentID: "a", ExitReason: "done"})
	assert.Less(t, time.Since(start), lifecycleDeliveryTimeout)

	item := <-ch
	require.Equal(t, KindExited, item.Event.Kind)
	assert.Equal(t, "done", item.Event.ExitReason)
	assert.Equal(t, 0, item.Lagged)
}

func TestPublishLifecycleDropsOldestAfterTimeout(t *testing.T) {
	b := New()
	_, ch := b.Subscribe(Filter{}, 1)
	b.PublishOutput("a", nil, []byte("filler")) // fills the size-1 queue; nobody drains it

	start := time.Now()
	b.PublishLifecycle(Event{Kind: KindExited, AgentID: "a", ExitReason: "done"})
	assert.GreaterOrEqual(t, time.Since(start), lifecycleDeliveryTimeout)

	item := <-ch
	require.Equal(t, KindExited, item.Event.Kind)
	assert.Equal(t, 1, item.Lagged)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	id, ch := b.Subscribe(Filter{}, 4)
	b.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)

	assert.Equal(t, 0, b.SubscriberCount())
}
