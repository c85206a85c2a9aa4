// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/destiny/zyre/zmtp"
	"github.com/destiny/zyre/zre"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeMailbox records decoded messages instead of sending them.
type fakeMailbox struct {
	identity string
	endpoint string
	sent     []zre.Message
	err      error
	closed   bool
}

func (m *fakeMailbox) Send(frames ...[]byte) error {
	if m.closed {
		return zmtp.ErrClosed
	}
	if m.err != nil {
		return m.err
	}
	msg, err := zre.Decode(frames[0])
	if err != nil {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailbox) Close() error {
	m.closed = true
	return nil
}

// take returns and forgets the messages sent so far.
func (m *fakeMailbox) take() []zre.Message {
	sent := m.sent
	m.sent = nil
	return sent
}

// fakeNet hands out fake mailboxes and remembers them by endpoint.
type fakeNet struct {
	dials []*fakeMailbox
}

func (f *fakeNet) dial(identity, endpoint string) (mailbox, error) {
	mb := &fakeMailbox{identity: identity, endpoint: endpoint}
	f.dials = append(f.dials, mb)
	return mb, nil
}

// last returns the most recent mailbox opened to endpoint.
func (f *fakeNet) last(endpoint string) *fakeMailbox {
	for i := len(f.dials) - 1; i >= 0; i-- {
		if f.dials[i].endpoint == endpoint {
			return f.dials[i]
		}
	}
	return nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// newTestNode returns a node that is not started, with a fake network and
// clock, for driving handlers directly.
func newTestNode(t *testing.T) (*Node, *fakeNet, *fakeClock) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Name = "local"
	cfg.Logger = zaptest.NewLogger(t)
	n, err := NewNode(cfg)
	require.NoError(t, err)

	fn := &fakeNet{}
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	n.dial = fn.dial
	n.now = clk.Now
	n.host = "10.0.0.1"
	n.port = 0xc001
	return n, fn, clk
}

// takeEvents returns and forgets the events queued so far on a node that
// is not started.
func takeEvents(n *Node) []*Event {
	n.events.mu.Lock()
	defer n.events.mu.Unlock()
	evs := n.events.pending
	n.events.pending = nil
	return evs
}

func eventTypes(evs []*Event) []EventType {
	types := make([]EventType, 0, len(evs))
	for _, e := range evs {
		types = append(types, e.Type)
	}
	return types
}

// frame builds an inbound mailbox message from a remote peer.
func frame(t *testing.T, from uuid.UUID, seq uint16, msg zre.Message) zmtp.Msg {
	t.Helper()
	msg.SetSequence(seq)
	data, err := zre.Encode(msg)
	require.NoError(t, err)
	return zmtp.Msg{Identity: zre.Identity(from), Frames: [][]byte{data}}
}

// remote describes another node as seen by the node under test.
type remote struct {
	id   uuid.UUID
	ip   net.IP
	port uint16
	seq  uint16
}

func newRemote(ip string, port uint16) *remote {
	return &remote{id: uuid.New(), ip: net.ParseIP(ip).To4(), port: port}
}

func (r *remote) identity() string { return zre.Identity(r.id) }

func (r *remote) endpoint() string {
	return "tcp://" + net.JoinHostPort(r.ip.String(), strconv.Itoa(int(r.port)))
}

func (r *remote) beacon() *Discovery {
	return &Discovery{ID: r.id, Port: r.port, Addr: r.ip}
}

// next stamps msg with the remote's next sequence number.
func (r *remote) next(t *testing.T, msg zre.Message) zmtp.Msg {
	r.seq++
	return frame(t, r.id, r.seq, msg)
}

func (r *remote) hello(t *testing.T, groups ...string) zmtp.Msg {
	return r.next(t, &zre.Hello{
		IPAddress: r.ip.String(),
		Mailbox:   r.port,
		Groups:    groups,
		Name:      "remote-" + r.identity()[:4],
		Headers:   map[string]string{"X-ROLE": "test"},
	})
}

// beaconHub is an in-memory broadcast domain: every frame sent by a member
// is delivered to every member, the sender included.
type beaconHub struct {
	mu      sync.Mutex
	members map[*hubBeacon]struct{}
}

func newBeaconHub() *beaconHub {
	return &beaconHub{members: make(map[*hubBeacon]struct{})}
}

func (h *beaconHub) join(addr string) *hubBeacon {
	b := &hubBeacon{
		hub:         h,
		addr:        net.ParseIP(addr).To4(),
		discoveries: make(chan *Discovery, 64),
	}
	h.mu.Lock()
	h.members[b] = struct{}{}
	h.mu.Unlock()
	return b
}

type hubBeacon struct {
	hub         *beaconHub
	addr        net.IP
	discoveries chan *Discovery
}

func (b *hubBeacon) Send(data []byte) error {
	beacon, err := zre.ParseBeacon(data)
	if err != nil {
		return err
	}
	b.hub.mu.Lock()
	defer b.hub.mu.Unlock()
	if _, ok := b.hub.members[b]; !ok {
		return errors.New("hub: beacon closed")
	}
	for m := range b.hub.members {
		select {
		case m.discoveries <- &Discovery{ID: beacon.ID, Port: beacon.Port, Addr: b.addr}:
		default:
		}
	}
	return nil
}

func (b *hubBeacon) Discoveries() <-chan *Discovery {
	return b.discoveries
}

func (b *hubBeacon) Close() error {
	b.hub.mu.Lock()
	defer b.hub.mu.Unlock()
	if _, ok := b.hub.members[b]; ok {
		delete(b.hub.members, b)
		close(b.discoveries)
	}
	return nil
}
