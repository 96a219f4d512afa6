package refresher

import (
	"sync"

	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

// Listener receives what a Refresher fetches. Callbacks run synchronously
// on the polling goroutine, so they must return quickly and do their own
// marshalling onto any thread with exclusivity rules.
//
// For a given Refresher, OnDisconnected is called exactly once and is
// always the last call.
type Listener interface {
	OnSnapshot(s *terrain.Snapshot)
	OnDisconnected()
}

// AttachListener is implemented by listeners that want the endpoint when
// polling starts, before the first snapshot. OnAttached is called once,
// from Start.
type AttachListener interface {
	OnAttached(ep terrain.EndpointID)
}

// ListenerFuncs adapts a pair of functions to Listener. Nil fields are
// skipped. Register it by pointer: the registry compares listeners for
// identity.
type ListenerFuncs struct {
	Snapshot     func(s *terrain.Snapshot)
	Disconnected func()
}

// OnSnapshot calls f.Snapshot.
func (f *ListenerFuncs) OnSnapshot(s *terrain.Snapshot) {
	if f.Snapshot != nil {
		f.Snapshot(s)
	}
}

// OnDisconnected calls f.Disconnected.
func (f *ListenerFuncs) OnDisconnected() {
	if f.Disconnected != nil {
		f.Disconnected()
	}
}

// EventKind tags an Event.
type EventKind int

const (
	EventSnapshot EventKind = iota
	EventDisconnected
)

func (k EventKind) String() string {
	if k == EventDisconnected {
		return "disconnected"
	}
	return "snapshot"
}

// Event is one listener callback as a value.
type Event struct {
	Kind     EventKind
	Snapshot *terrain.Snapshot
}

// ChannelListener turns callbacks into Events on a channel. Sends block
// when the buffer is full, holding up the polling loop the same way a slow
// synchronous listener would. The channel is closed after the disconnect
// event, so a consumer can range over it.
//
// A ChannelListener serves a single Refresher.
type ChannelListener struct {
	ch   chan Event
	once sync.Once
}

// NewChannelListener creates a listener with the given buffer size.
func NewChannelListener(buffer int) *ChannelListener {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelListener{ch: make(chan Event, buffer)}
}

// Events returns the receive side.
func (c *ChannelListener) Events() <-chan Event {
	return c.ch
}

// OnSnapshot implements Listener.
func (c *ChannelListener) OnSnapshot(s *terrain.Snapshot) {
	c.ch <- Event{Kind: EventSnapshot, Snapshot: s}
}

// OnDisconnected implements Listener.
func (c *ChannelListener) OnDisconnected() {
	c.once.Do(func() {
		c.ch <- Event{Kind: EventDisconnected}
		close(c.ch)
	})
}
