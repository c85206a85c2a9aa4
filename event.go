// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"sync"
	"time"
)

// EventType tags an Event.
type EventType string

// Event types delivered on Node.Events.
const (
	EventTypeEnter   EventType = "ENTER"   // Peer sighted
	EventTypeExit    EventType = "EXIT"    // Peer expired or left
	EventTypeJoin    EventType = "JOIN"    // Peer joined a group
	EventTypeLeave   EventType = "LEAVE"   // Peer left a group
	EventTypeWhisper EventType = "WHISPER" // Direct message
	EventTypeShout   EventType = "SHOUT"   // Group message
)

// Event represents a ZRE network event. Events are copies; nothing in them
// aliases node state.
type Event struct {
	Type     EventType // Event type
	Peer     string    // Identity of the peer that generated this event
	Name     string    // Peer name, once its HELLO was received
	Endpoint string    // Peer mailbox endpoint (ENTER)
	Group    string    // Group name (JOIN, LEAVE, SHOUT)
	Payload  []byte    // Message content (WHISPER, SHOUT)
	Time     time.Time // When the event occurred
}

func newEnterEvent(p *peer, now time.Time) *Event {
	return &Event{Type: EventTypeEnter, Peer: p.identity, Name: p.name, Endpoint: p.endpoint, Time: now}
}

func newExitEvent(p *peer, now time.Time) *Event {
	return &Event{Type: EventTypeExit, Peer: p.identity, Name: p.name, Time: now}
}

func newJoinEvent(p *peer, group string, now time.Time) *Event {
	return &Event{Type: EventTypeJoin, Peer: p.identity, Name: p.name, Group: group, Time: now}
}

func newLeaveEvent(p *peer, group string, now time.Time) *Event {
	return &Event{Type: EventTypeLeave, Peer: p.identity, Name: p.name, Group: group, Time: now}
}

func newWhisperEvent(p *peer, payload []byte, now time.Time) *Event {
	return &Event{Type: EventTypeWhisper, Peer: p.identity, Name: p.name, Payload: payload, Time: now}
}

func newShoutEvent(p *peer, group string, payload []byte, now time.Time) *Event {
	return &Event{Type: EventTypeShout, Peer: p.identity, Name: p.name, Group: group, Payload: payload, Time: now}
}

// eventQueue is an unbounded FIFO between the engine and the application.
// push never blocks; a pump goroutine feeds the out channel in order.
type eventQueue struct {
	mu      sync.Mutex
	pending []*Event
	closing bool

	notify chan struct{}
	out    chan *Event
	done   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		notify: make(chan struct{}, 1),
		out:    make(chan *Event),
		done:   make(chan struct{}),
	}
}

// C returns the delivery channel. It is closed after close.
func (q *eventQueue) C() <-chan *Event {
	return q.out
}

func (q *eventQueue) push(e *Event) {
	q.mu.Lock()
	if q.closing {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// run delivers events until close. Undelivered events are discarded.
func (q *eventQueue) run() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if q.closing {
			q.pending = nil
			q.mu.Unlock()
			return
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			select {
			case <-q.notify:
			case <-q.done:
			}
			continue
		}
		e := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		select {
		case q.out <- e:
		case <-q.done:
		}
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closing {
		return
	}
	q.closing = true
	close(q.done)
}
