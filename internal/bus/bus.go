// Package bus implements botty's server-wide event fan-out (spec §4.5): a
// multi-producer multi-consumer broadcast where each subscriber has its
// own bounded queue. A full queue drops its oldest entry rather than
// blocking the producer, so one slow subscriber never stalls the PTY
// pumps publishing to it; the dropped count surfaces on the next
// delivered item via Item.Lagged.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what an Event represents.
type Kind string

const (
	KindOutput  Kind = "output"
	KindSpawned Kind = "spawned"
	KindExited  Kind = "exited"
)

// lifecycleDeliveryTimeout bounds how long PublishLifecycle blocks a
// producer trying to hand an event to a single slow subscriber before
// falling back to drop-oldest. Lifecycle events matter enough to wait a
// little; they must never be allowed to stall a pump indefinitely.
const lifecycleDeliveryTimeout = 50 * time.Millisecond

// Event is one occurrence published to the bus.
type Event struct {
	Kind    Kind
	AgentID string
	Labels  []string
	At      time.Time

	// Output payload, set when Kind == KindOutput.
	Data []byte

	// Lifecycle fields, set when Kind == KindExited.
	ExitCode   *int
	ExitSignal *int
	ExitReason string
}

// Filter selects which events a subscriber wants. A nil/empty slice
// means "no restriction on this dimension".
type Filter struct {
	IDs    []string
	Labels []string
	Kinds  []string
}

func (f Filter) matches(e Event) bool {
	if len(f.Kinds) > 0 && !containsStr(f.Kinds, string(e.Kind)) {
		return false
	}
	if len(f.IDs) > 0 && !containsStr(f.IDs, e.AgentID) {
		return false
	}
	if len(f.Labels) > 0 && !anyLabelMatches(f.Labels, e.Labels) {
		return false
	}
	return true
}

func containsStr(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func anyLabelMatches(want, have []string) bool {
	for _, w := range want {
		if containsStr(have, w) {
			return true
		}
	}
	return false
}

// Item is one delivered queue entry: an Event plus how many prior events
// were dropped for this subscriber before it.
type Item struct {
	Event  Event
	Lagged int
}

type subscriber struct {
	mu         sync.Mutex
	ch         chan Item
	filter     Filter
	pendingLag int
}

func (s *subscriber) deliver(item Item, blocking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.Lagged = s.pendingLag
	select {
	case s.ch <- item:
		s.pendingLag = 0
		return
	default:
	}

	if blocking {
		select {
		case s.ch <- item:
			s.pendingLag = 0
			return
		case <-time.After(lifecycleDeliveryTimeout):
		}
	}

	// Drop the oldest queued item, then push this one.
	select {
	case <-s.ch:
		s.pendingLag++
	default:
	}
	item.Lagged = s.pendingLag
	select {
	case s.ch <- item:
		s.pendingLag = 0
	default:
		s.pendingLag++
	}
}

// Bus is the server-wide event fan-out. The zero value is not usable;
// construct with New.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string]*subscriber)}
}

// DefaultQueueSize is the default bounded-queue depth for a subscriber
// that doesn't specify one.
const DefaultQueueSize = 256

// Subscribe registers a new subscriber matching filter and returns its
// id (for Unsubscribe) and the channel it receives items on. queueSize
// <= 0 uses DefaultQueueSize.
func (b *Bus) Subscribe(filter Filter, queueSize int) (string, <-chan Item) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	sub := &subscriber{
		ch:     make(chan Item, queueSize),
		filter: filter,
	}
	id := uuid.NewString()

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// more than once.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// snapshot returns the subscribers currently matching e, without holding
// the bus lock during delivery (delivery may block briefly for
// lifecycle events).
func (b *Bus) snapshot(e Event) []*subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var matched []*subscriber
	for _, sub := range b.subs {
		if sub.filter.matches(e) {
			matched = append(matched, sub)
		}
	}
	return matched
}

// PublishOutput is the hot path (spec §4.4 step 3): best-effort,
// non-blocking delivery of raw PTY bytes to every matching subscriber.
func (b *Bus) PublishOutput(agentID string, labels []string, data []byte) {
	e := Event{Kind: KindOutput, AgentID: agentID, Labels: labels, At: time.Now(), Data: data}
	for _, sub := range b.snapshot(e) {
		sub.deliver(Item{Event: e}, false)
	}
}

// PublishLifecycle delivers a Spawned/Exited event. Unlike Output,
// lifecycle events are guaranteed delivered: publish blocks a short
// timeout per subscriber before falling back to drop-oldest, so no
// subscriber can stall the publisher indefinitely while also not
// silently losing a spawn/exit notification under normal load.
func (b *Bus) PublishLifecycle(e Event) {
	e.At = time.Now()
	for _, sub := range b.snapshot(e) {
		sub.deliver(Item{Event: e}, true)
	}
}

// SubscriberCount reports how many subscribers are currently registered.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
