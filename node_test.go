// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/destiny/zyre/zmtp"
	"github.com/destiny/zyre/zre"
)

func TestBeaconSighting(t *testing.T) {
	n, fn, _ := newTestNode(t)
	n.headers["X-APP"] = "test"
	n.joinOwnGroup("GLOBAL")
	r := newRemote("10.0.0.2", 0xc002)

	n.handleBeacon(r.beacon())

	evs := takeEvents(n)
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeEnter, evs[0].Type)
	assert.Equal(t, r.identity(), evs[0].Peer)
	assert.Equal(t, "tcp://10.0.0.2:49154", evs[0].Endpoint)

	require.Len(t, fn.dials, 1)
	mb := fn.dials[0]
	assert.Equal(t, n.Identity(), mb.identity)
	assert.Equal(t, r.endpoint(), mb.endpoint)

	sent := mb.take()
	require.Len(t, sent, 1)
	hello, ok := sent[0].(*zre.Hello)
	require.True(t, ok)
	assert.Equal(t, uint16(1), hello.Seq)
	assert.Equal(t, "10.0.0.1", hello.IPAddress)
	assert.Equal(t, uint16(0xc001), hello.Mailbox)
	assert.Equal(t, []string{"GLOBAL"}, hello.Groups)
	assert.Equal(t, byte(1), hello.Status)
	assert.Equal(t, "local", hello.Name)
	assert.Equal(t, map[string]string{"X-APP": "test"}, hello.Headers)

	// the same beacon again neither re-enters nor reconnects
	n.handleBeacon(r.beacon())
	assert.Empty(t, takeEvents(n))
	assert.Len(t, fn.dials, 1)
	assert.Empty(t, mb.take())
}

func TestOwnBeaconIgnored(t *testing.T) {
	n, fn, _ := newTestNode(t)
	n.handleBeacon(&Discovery{ID: n.UUID(), Port: 0xc001, Addr: []byte{10, 0, 0, 1}})
	assert.Empty(t, n.peers)
	assert.Empty(t, fn.dials)
	assert.Empty(t, takeEvents(n))
}

func TestManyBeaconsOneSightingEach(t *testing.T) {
	n, fn, _ := newTestNode(t)
	remotes := make([]*remote, 20)
	for i := range remotes {
		remotes[i] = newRemote("10.0.1.1", uint16(0xc000+i))
	}
	for round := 0; round < 3; round++ {
		for _, r := range remotes {
			n.handleBeacon(r.beacon())
		}
	}
	evs := takeEvents(n)
	require.Len(t, evs, len(remotes))
	seen := map[string]bool{}
	for _, e := range evs {
		assert.Equal(t, EventTypeEnter, e.Type)
		assert.False(t, seen[e.Peer], "second ENTER for %s", e.Peer)
		seen[e.Peer] = true
	}
	assert.Len(t, fn.dials, len(remotes))
}

func TestSilentBeacon(t *testing.T) {
	n, fn, _ := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleBeacon(r.beacon())
	n.handleInbox(r.hello(t, "X"))
	takeEvents(n)

	leaving := r.beacon()
	leaving.Port = 0
	n.handleBeacon(leaving)

	evs := takeEvents(n)
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeExit, evs[0].Type)
	assert.Empty(t, n.peers)
	assert.Empty(t, n.peerGroups)
	assert.True(t, fn.last(r.endpoint()).closed)

	// a leaving beacon from a stranger is a no-op
	n.handleBeacon(&Discovery{ID: uuid.New(), Addr: r.ip})
	assert.Empty(t, takeEvents(n))
	assert.Empty(t, n.peers)
}

func TestNonHelloFromUnreadyPeerIgnored(t *testing.T) {
	n, _, _ := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleBeacon(r.beacon())
	takeEvents(n)

	// sighted but no HELLO yet
	n.handleInbox(frame(t, r.id, 1, &zre.Whisper{Content: []byte("ping")}))
	n.handleInbox(frame(t, r.id, 2, &zre.Join{Group: "X", Status: 1}))
	assert.Empty(t, takeEvents(n))
	assert.Empty(t, n.peerGroups)
	assert.Equal(t, 2.0, promtest.ToFloat64(n.metrics.dropped.WithLabelValues(dropNotReady)))

	n.handleInbox(r.hello(t))
	n.handleInbox(r.next(t, &zre.Whisper{Content: []byte("ping")}))
	evs := takeEvents(n)
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeWhisper, evs[0].Type)
	assert.Equal(t, []byte("ping"), evs[0].Payload)
	assert.Equal(t, "remote-"+r.identity()[:4], evs[0].Name)
}

func TestNonHelloFromStrangerIgnored(t *testing.T) {
	n, fn, _ := newTestNode(t)
	n.handleInbox(frame(t, uuid.New(), 1, &zre.Shout{Group: "X", Content: []byte("hi")}))
	assert.Empty(t, n.peers)
	assert.Empty(t, fn.dials)
	assert.Empty(t, takeEvents(n))
}

func TestHelloFromStranger(t *testing.T) {
	n, fn, _ := newTestNode(t)
	r := newRemote("10.0.0.3", 0xc003)

	n.handleInbox(r.hello(t, "A", "B"))

	evs := takeEvents(n)
	assert.Equal(t, []EventType{EventTypeEnter, EventTypeJoin, EventTypeJoin}, eventTypes(evs))
	assert.Equal(t, "remote-"+r.identity()[:4], evs[0].Name)
	assert.Equal(t, "A", evs[1].Group)
	assert.Equal(t, "B", evs[2].Group)

	mb := fn.last(r.endpoint())
	require.NotNil(t, mb)
	sent := mb.take()
	require.Len(t, sent, 1)
	assert.Equal(t, zre.KindHello, sent[0].Kind())

	p := n.peers[r.identity()]
	require.NotNil(t, p)
	assert.True(t, p.ready)
	assert.Equal(t, "test", p.headers["X-ROLE"])
	assert.Equal(t, []string{"A", "B"}, p.groupNames())
	assert.Equal(t, []string{r.identity()}, n.peerGroups["A"].memberIDs())
}

func TestRepeatedHelloDoesNotRejoin(t *testing.T) {
	n, _, _ := newTestNode(t)
	r := newRemote("10.0.0.3", 0xc003)
	n.handleInbox(r.hello(t, "A"))
	takeEvents(n)

	n.handleInbox(r.hello(t, "A", "B"))
	evs := takeEvents(n)
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeJoin, evs[0].Type)
	assert.Equal(t, "B", evs[0].Group)
}

func TestHelloReconnectsDisconnectedPeer(t *testing.T) {
	n, fn, _ := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleInbox(r.hello(t))
	p := n.peers[r.identity()]
	p.disconnect()
	takeEvents(n)

	n.handleInbox(r.hello(t))
	assert.True(t, p.connected)
	assert.True(t, p.ready)
	assert.Len(t, fn.dials, 2)
	assert.Empty(t, takeEvents(n), "reconnecting is not a new ENTER")
	sent := fn.last(r.endpoint()).take()
	require.Len(t, sent, 1)
	assert.Equal(t, zre.KindHello, sent[0].Kind())
}

func TestBeaconReconnectKeepsPeerReady(t *testing.T) {
	n, fn, _ := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleInbox(r.hello(t))
	p := n.peers[r.identity()]
	require.True(t, p.ready)

	fn.last(r.endpoint()).err = errors.New("connection reset")
	require.True(t, n.handleCommand(joinCmd{group: "X"}))
	require.False(t, p.connected)
	takeEvents(n)

	// the remote still has us as a ready peer and will not say HELLO again
	n.handleBeacon(r.beacon())
	assert.True(t, p.connected)
	assert.True(t, p.ready)
	assert.Len(t, fn.dials, 2)

	for i := 0; i < 3; i++ {
		n.handleInbox(r.next(t, &zre.Whisper{Content: []byte("still here")}))
	}
	evs := takeEvents(n)
	assert.Equal(t, []EventType{EventTypeWhisper, EventTypeWhisper, EventTypeWhisper}, eventTypes(evs))
	assert.Equal(t, 0.0, promtest.ToFloat64(n.metrics.dropped.WithLabelValues(dropNotReady)))
}

func TestJoinLeaveBroadcast(t *testing.T) {
	n, fn, _ := newTestNode(t)
	r1 := newRemote("10.0.0.2", 0xc002)
	r2 := newRemote("10.0.0.3", 0xc003)
	n.handleBeacon(r1.beacon())
	n.handleBeacon(r2.beacon())
	for _, mb := range fn.dials {
		mb.take()
	}
	takeEvents(n)

	require.True(t, n.handleCommand(joinCmd{group: "X"}))
	assert.Equal(t, []string{"X"}, groupNames(n.ownGroups))
	require.True(t, n.handleCommand(joinCmd{group: "X"}), "second join is a no-op")

	require.True(t, n.handleCommand(leaveCmd{group: "X"}))
	assert.Empty(t, groupNames(n.ownGroups))
	require.True(t, n.handleCommand(leaveCmd{group: "X"}), "second leave is a no-op")

	for _, mb := range fn.dials {
		sent := mb.take()
		require.Len(t, sent, 2)
		join, ok := sent[0].(*zre.Join)
		require.True(t, ok)
		leave, ok := sent[1].(*zre.Leave)
		require.True(t, ok)
		assert.Equal(t, "X", join.Group)
		assert.Equal(t, "X", leave.Group)
		assert.Greater(t, leave.Status, join.Status)
		assert.Equal(t, join.Seq+1, leave.Seq)
	}
	assert.Empty(t, takeEvents(n), "own membership changes emit no events")
}

func TestStatusWraps(t *testing.T) {
	n, _, _ := newTestNode(t)
	n.status = 255
	n.joinOwnGroup("X")
	assert.Equal(t, byte(0), n.status)
}

func TestShoutUsesPeerGroups(t *testing.T) {
	n, fn, _ := newTestNode(t)
	r1 := newRemote("10.0.0.2", 0xc002)
	r2 := newRemote("10.0.0.3", 0xc003)
	n.handleInbox(r1.hello(t))
	n.handleInbox(r2.hello(t))
	for _, mb := range fn.dials {
		mb.take()
	}

	// nobody announced X yet
	n.handleCommand(shoutCmd{group: "X", payload: []byte("hi")})
	for _, mb := range fn.dials {
		assert.Empty(t, mb.take())
	}
	assert.Equal(t, 1.0, promtest.ToFloat64(n.metrics.dropped.WithLabelValues(dropNoTarget)))

	n.handleInbox(r1.next(t, &zre.Join{Group: "X", Status: 1}))
	assert.NotContains(t, groupNames(n.ownGroups), "X")

	n.handleCommand(shoutCmd{group: "X", payload: []byte("hi")})
	sent := fn.last(r1.endpoint()).take()
	require.Len(t, sent, 1)
	shout, ok := sent[0].(*zre.Shout)
	require.True(t, ok)
	assert.Equal(t, "X", shout.Group)
	assert.Equal(t, []byte("hi"), shout.Content)
	assert.Empty(t, fn.last(r2.endpoint()).take())
}

func TestWhisper(t *testing.T) {
	n, fn, _ := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleBeacon(r.beacon())
	fn.dials[0].take()

	n.handleCommand(whisperCmd{peer: "0000", payload: []byte("lost")})
	assert.Empty(t, fn.dials[0].take())

	n.handleCommand(whisperCmd{peer: r.identity(), payload: []byte("found")})
	sent := fn.dials[0].take()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte("found"), sent[0].(*zre.Whisper).Content)
}

func TestPeerJoinLeave(t *testing.T) {
	n, _, _ := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleInbox(r.hello(t))
	takeEvents(n)

	n.handleInbox(r.next(t, &zre.Join{Group: "X", Status: 1}))
	n.handleInbox(r.next(t, &zre.Leave{Group: "X", Status: 2}))
	n.handleInbox(r.next(t, &zre.Leave{Group: "X", Status: 3}))

	evs := takeEvents(n)
	assert.Equal(t, []EventType{EventTypeJoin, EventTypeLeave}, eventTypes(evs))
	assert.Empty(t, n.peerGroups, "empty peer groups are dropped")
	assert.Equal(t, byte(3), n.peers[r.identity()].status)
}

func TestPeerStatusResync(t *testing.T) {
	n, _, _ := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleInbox(r.hello(t))
	p := n.peers[r.identity()]
	require.Equal(t, byte(0), p.status)

	n.handleInbox(r.next(t, &zre.Join{Group: "X", Status: 7}))
	assert.Equal(t, byte(7), p.status)
	n.handleInbox(r.next(t, &zre.Join{Group: "Y", Status: 8}))
	assert.Equal(t, byte(8), p.status)
}

func TestPingAnswered(t *testing.T) {
	n, fn, _ := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleInbox(r.hello(t))
	mb := fn.last(r.endpoint())
	mb.take()

	n.handleInbox(r.next(t, &zre.Ping{}))
	sent := mb.take()
	require.Len(t, sent, 1)
	assert.Equal(t, zre.KindPingOK, sent[0].Kind())
	assert.Empty(t, takeEvents(n)[1:])
}

func TestLivenessSweep(t *testing.T) {
	n, fn, clk := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleBeacon(r.beacon())
	n.handleInbox(r.hello(t, "X"))
	mb := fn.last(r.endpoint())
	mb.take()
	takeEvents(n)

	pings := func() int {
		count := 0
		for _, m := range mb.take() {
			if m.Kind() == zre.KindPing {
				count++
			}
		}
		return count
	}

	clk.Advance(4 * time.Second)
	n.pingPeers(clk.Now())
	assert.Equal(t, 0, pings(), "not evasive yet")

	// one PING per tick while evasive
	for i := 0; i < 5; i++ {
		clk.Advance(time.Second)
		n.pingPeers(clk.Now())
		assert.Equal(t, 1, pings(), "tick %d", i)
	}

	// any activity, PING-OK included, pushes the deadlines out
	n.handleInbox(r.next(t, &zre.PingOK{}))
	clk.Advance(time.Second)
	n.pingPeers(clk.Now())
	assert.Equal(t, 0, pings())
	assert.Empty(t, takeEvents(n))

	clk.Advance(DefaultExpiredTimeout)
	n.pingPeers(clk.Now())
	evs := takeEvents(n)
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeExit, evs[0].Type)
	assert.Equal(t, r.identity(), evs[0].Peer)
	assert.Empty(t, n.peers)
	assert.Empty(t, n.peerGroups)
	assert.True(t, mb.closed)

	// sweeping again does not repeat EXIT
	clk.Advance(time.Second)
	n.pingPeers(clk.Now())
	assert.Empty(t, takeEvents(n))

	// the same identity comes back as a new peer
	n.handleBeacon(r.beacon())
	evs = takeEvents(n)
	require.Len(t, evs, 1)
	assert.Equal(t, EventTypeEnter, evs[0].Type)
	assert.Len(t, fn.dials, 2)
}

func TestBeaconRefreshesPeer(t *testing.T) {
	n, _, clk := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleBeacon(r.beacon())
	takeEvents(n)

	for i := 0; i < 40; i++ {
		clk.Advance(time.Second)
		n.handleBeacon(r.beacon())
		n.pingPeers(clk.Now())
	}
	assert.Len(t, n.peers, 1)
	assert.Empty(t, takeEvents(n))
}

// The expected sequence number resynchronizes to the observed one, so a
// single gap is reported once rather than on every later message.
func TestSequenceGapResync(t *testing.T) {
	n, _, _ := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleInbox(r.hello(t))
	n.handleInbox(r.next(t, &zre.Whisper{Content: []byte("1")}))
	assert.Equal(t, 0.0, promtest.ToFloat64(n.metrics.seqGaps))

	r.seq += 3
	n.handleInbox(r.next(t, &zre.Whisper{Content: []byte("2")}))
	n.handleInbox(r.next(t, &zre.Whisper{Content: []byte("3")}))
	n.handleInbox(r.next(t, &zre.Whisper{Content: []byte("4")}))
	assert.Equal(t, 1.0, promtest.ToFloat64(n.metrics.seqGaps))

	// gaps are advisory: every message was still delivered
	var whispers int
	for _, e := range takeEvents(n) {
		if e.Type == EventTypeWhisper {
			whispers++
		}
	}
	assert.Equal(t, 4, whispers)
}

func TestMalformedFramesDropped(t *testing.T) {
	n, _, _ := newTestNode(t)
	r := newRemote("10.0.0.2", 0xc002)
	n.handleInbox(r.hello(t))
	takeEvents(n)

	n.handleInbox(zmtp.Msg{Identity: r.identity(), Frames: [][]byte{{byte(zre.KindShout), 0}}})
	n.handleInbox(zmtp.Msg{Identity: r.identity(), Frames: [][]byte{{1}, {2}}})
	assert.Equal(t, 2.0, promtest.ToFloat64(n.metrics.dropped.WithLabelValues(dropMalformed)))

	// the peer relationship survives
	n.handleInbox(r.next(t, &zre.Whisper{Content: []byte("still here")}))
	evs := takeEvents(n)
	require.Len(t, evs, 1)
	assert.Equal(t, []byte("still here"), evs[0].Payload)
}

func TestPurgeOnEndpointReuse(t *testing.T) {
	n, fn, _ := newTestNode(t)
	old := newRemote("10.0.0.2", 0xc002)
	n.handleBeacon(old.beacon())
	oldMailbox := fn.last(old.endpoint())

	restarted := newRemote("10.0.0.2", 0xc002)
	n.handleBeacon(restarted.beacon())

	assert.True(t, oldMailbox.closed)
	assert.False(t, n.peers[old.identity()].connected)
	assert.True(t, n.peers[restarted.identity()].connected)
	assert.Equal(t, "", n.peers[old.identity()].currentEndpoint())
}

func TestSendFailureDisconnectsOnlyThatPeer(t *testing.T) {
	n, fn, _ := newTestNode(t)
	r1 := newRemote("10.0.0.2", 0xc002)
	r2 := newRemote("10.0.0.3", 0xc003)
	r3 := newRemote("10.0.0.4", 0xc004)
	n.handleBeacon(r1.beacon())
	n.handleBeacon(r2.beacon())
	n.handleBeacon(r3.beacon())
	for _, mb := range fn.dials {
		mb.take()
	}

	fn.last(r1.endpoint()).err = errors.New("connection reset")
	fn.last(r2.endpoint()).err = zmtp.ErrWouldBlock

	n.joinOwnGroup("X")

	assert.False(t, n.peers[r1.identity()].connected, "hard failure disconnects")
	assert.True(t, n.peers[r2.identity()].connected, "full queue only drops")
	assert.Len(t, fn.last(r3.endpoint()).take(), 1)
	assert.Equal(t, 1.0, promtest.ToFloat64(n.metrics.dropped.WithLabelValues(dropQueueFull)))
	assert.Equal(t, 1.0, promtest.ToFloat64(n.metrics.dropped.WithLabelValues(dropSendFailed)))
}

func TestTerminateCommand(t *testing.T) {
	n, _, _ := newTestNode(t)
	assert.False(t, n.handleCommand(terminateCmd{}))
	assert.True(t, n.handleCommand(setHeaderCmd{key: "K", value: "V"}))
	assert.Equal(t, "V", n.headers["K"])

	ran := false
	q := queryCmd{fn: func() { ran = true }, done: make(chan struct{})}
	assert.True(t, n.handleCommand(q))
	assert.True(t, ran)
	_, open := <-q.done
	assert.False(t, open)
}

func TestNormalizeGroup(t *testing.T) {
	got, err := normalizeGroup("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", got)

	_, err = normalizeGroup("")
	assert.True(t, errors.Is(err, ErrInvalidGroup))
	long := make([]byte, zre.MaxStringSize+1)
	for i := range long {
		long[i] = 'g'
	}
	_, err = normalizeGroup(string(long))
	assert.True(t, errors.Is(err, ErrInvalidGroup))
}

func TestResolveHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "192.0.2.7"
	host, err := resolveHost(cfg)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.7", host)

	cfg.Host = ""
	host, err = resolveHost(cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, host)

	cfg.Interface = "does-not-exist0"
	_, err = resolveHost(cfg)
	assert.Error(t, err)
}
