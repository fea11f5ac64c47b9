// Package events implements the notification bus connecting the session
// engines to the UI-facing stream.
//
// Each topic (a terminal session handle, or the auth flow) has at most
// one listener. Events published to a topic are delivered to its
// listener in emission order; ordering across topics is not defined.
package events

import (
	"errors"
	"sync"
	"time"
)

// Event types pushed over the bus.
const (
	TypeOutput     = "output"
	TypeExit       = "exit"
	TypeSpawnError = "spawn_error"
	TypeAuthStatus = "auth_status"
	TypeAuthResult = "auth_result"
	TypeRepoStatus = "repo_status"
)

// ErrListenerExists is returned when a topic already has a listener.
var ErrListenerExists = errors.New("events: topic already has a listener")

// Event is a single asynchronous notification.
type Event struct {
	Type      string                 `json:"type"`
	Topic     string                 `json:"topic"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Listener receives events for a single topic, one at a time, in
// emission order.
type Listener func(Event)

// defaultQueueSize bounds the per-topic delivery queue. Terminal output
// is also mirrored into the session scrollback, so dropping under
// sustained backpressure loses nothing the client cannot re-read.
const defaultQueueSize = 256

// finalWait is how long Publish will wait for queue space when the
// event ends its topic's stream. Stream-ending events carry state no
// other channel recovers, so they are not dropped on a full queue the
// way output is.
const finalWait = time.Second

// finalEvent reports whether ev is the last word on its topic.
func finalEvent(eventType string) bool {
	switch eventType {
	case TypeExit, TypeSpawnError, TypeAuthResult:
		return true
	}
	return false
}

type subscriber struct {
	queue chan Event
	done  chan struct{}
}

// Bus routes events from engines to per-topic listeners.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string]*subscriber
	closed    bool
	queueSize int

	dropMu  sync.Mutex
	dropped map[string]uint64
}

// New creates an event bus.
func New() *Bus {
	return &Bus{
		subs:      make(map[string]*subscriber),
		queueSize: defaultQueueSize,
		dropped:   make(map[string]uint64),
	}
}

// Subscribe registers the listener for a topic. A topic supports at
// most one listener; a second Subscribe fails until the first is
// removed. Delivery happens on a dedicated goroutine so publishers
// never block on slow listeners.
func (b *Bus) Subscribe(topic string, fn Listener) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("events: bus closed")
	}
	if _, ok := b.subs[topic]; ok {
		return ErrListenerExists
	}

	sub := &subscriber{
		queue: make(chan Event, b.queueSize),
		done:  make(chan struct{}),
	}
	b.subs[topic] = sub

	go func() {
		for {
			select {
			case ev, ok := <-sub.queue:
				if !ok {
					return
				}
				fn(ev)
			case <-sub.done:
				// Drain anything already queued before stopping.
				for {
					select {
					case ev, ok := <-sub.queue:
						if !ok {
							return
						}
						fn(ev)
					default:
						return
					}
				}
			}
		}
	}()

	return nil
}

// Unsubscribe removes the topic's listener. Events published after
// removal are dropped. Safe to call for unknown topics.
func (b *Bus) Unsubscribe(topic string) {
	b.mu.Lock()
	sub, ok := b.subs[topic]
	if ok {
		delete(b.subs, topic)
	}
	b.mu.Unlock()

	if ok {
		close(sub.done)
	}
}

// Publish sends an event to the topic's listener, if any. Without a
// listener the event is dropped; the scrollback and terminal-state
// queries cover late subscribers. When the listener's queue is full,
// ordinary events are counted as dropped immediately, while
// stream-ending events wait up to finalWait for space first.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	sub, ok := b.subs[ev.Topic]
	b.mu.RUnlock()

	if !ok {
		return
	}

	select {
	case sub.queue <- ev:
		return
	default:
	}

	if finalEvent(ev.Type) {
		timer := time.NewTimer(finalWait)
		defer timer.Stop()
		select {
		case sub.queue <- ev:
			return
		case <-sub.done:
		case <-timer.C:
		}
	}

	b.dropMu.Lock()
	b.dropped[ev.Topic]++
	b.dropMu.Unlock()
}

// Dropped reports how many events were discarded for a topic due to
// listener backpressure.
func (b *Bus) Dropped(topic string) uint64 {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	return b.dropped[topic]
}

// Close tears down all listeners. Further Subscribe calls fail and
// further Publish calls are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[string]*subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}
}
