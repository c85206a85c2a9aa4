// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/destiny/zyre/zmtp"
	"github.com/destiny/zyre/zre"
)

var (
	// ErrNotRunning is returned by commands on a node that is not started,
	// or already stopped.
	ErrNotRunning = errors.New("zyre: node is not running")

	// ErrAlreadyStarted is returned when starting a node twice, or changing
	// its name after start.
	ErrAlreadyStarted = errors.New("zyre: node already started")

	// ErrInvalidGroup is returned for empty or over-long group names.
	ErrInvalidGroup = errors.New("zyre: invalid group name")
)

// Node states
const (
	NodeStateStopped = iota
	NodeStateRunning
	NodeStateTerminated
)

const (
	commandQueueSize = 256
	mailboxBindTries = 64
)

// Node is one participant in a ZRE network. Every registry below is owned
// by the loop goroutine; the public methods talk to it through the command
// channel.
type Node struct {
	cfg      *Config
	log      *zap.Logger
	metrics  *metrics
	uuid     uuid.UUID
	identity string
	name     string
	headers  map[string]string
	host     string // Address advertised in HELLO
	port     uint16 // Our mailbox port
	status   byte   // Bumped on every own join/leave

	peers      map[string]*peer
	ownGroups  map[string]*group
	peerGroups map[string]*group

	router   *zmtp.Router
	beacon   beaconTransport
	events   *eventQueue
	commands chan command
	seqLog   *rate.Limiter

	dial      dialFunc
	newBeacon func() (beaconTransport, error)
	now       func() time.Time

	mu    sync.Mutex
	state atomic.Int32
	grp   errgroup.Group
	done  chan struct{}
}

// NewNode creates a node from cfg, or from DefaultConfig when cfg is nil.
// The configuration is copied.
func NewNode(cfg *Config) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.clone()

	id := uuid.New()
	identity := zre.Identity(id)
	if cfg.Name == "" {
		cfg.Name = "node-" + identity[:6]
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("node", identity[:6]))

	m, err := newMetrics(cfg.Registerer, identity)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		uuid:       id,
		identity:   identity,
		name:       cfg.Name,
		headers:    cfg.Headers,
		peers:      make(map[string]*peer),
		ownGroups:  make(map[string]*group),
		peerGroups: make(map[string]*group),
		events:     newEventQueue(),
		commands:   make(chan command, commandQueueSize),
		seqLog:     rate.NewLimiter(rate.Every(time.Second), 10),
		now:        time.Now,
		done:       make(chan struct{}),
	}
	n.dial = n.dialDealer
	n.newBeacon = func() (beaconTransport, error) {
		return newUDPBeacon(n.cfg, n.log, n.metrics)
	}
	return n, nil
}

// UUID returns the node identity.
func (n *Node) UUID() uuid.UUID { return n.uuid }

// Identity returns the node identity as uppercase hex.
func (n *Node) Identity() string { return n.identity }

// Name returns the node name.
func (n *Node) Name() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.name
}

// SetName sets the name advertised in HELLO. It must be called before Start.
func (n *Node) SetName(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state.Load() != NodeStateStopped {
		return ErrAlreadyStarted
	}
	if len(name) > zre.MaxStringSize {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidConfig, zre.MaxStringSize)
	}
	n.name = name
	return nil
}

// Endpoint returns the mailbox endpoint advertised to peers, once started.
func (n *Node) Endpoint() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.port == 0 {
		return ""
	}
	return "tcp://" + net.JoinHostPort(n.host, strconv.Itoa(int(n.port)))
}

// Events returns the channel of network events. It is closed when the node
// stops; events not yet received at that point are discarded.
func (n *Node) Events() <-chan *Event {
	return n.events.C()
}

// Start binds the mailbox and beacon sockets and starts the node loop.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state.Load() != NodeStateStopped {
		return ErrAlreadyStarted
	}

	host, err := resolveHost(n.cfg)
	if err != nil {
		return err
	}
	n.host = host

	router := zmtp.NewRouter(n.identity,
		zmtp.WithLogger(n.log),
		zmtp.WithRecvHWM(n.cfg.SendHWM),
	)
	port, err := bindMailbox(router, n.cfg.MailboxPort)
	if err != nil {
		_ = router.Close()
		return err
	}
	n.router = router
	n.port = port

	beacon, err := n.newBeacon()
	if err != nil {
		_ = router.Close()
		n.port = 0
		return err
	}
	n.beacon = beacon

	n.state.Store(NodeStateRunning)
	n.grp.Go(func() error {
		n.events.run()
		return nil
	})
	n.grp.Go(n.run)

	n.log.Info("node started",
		zap.String("name", n.name),
		zap.String("endpoint", "tcp://"+net.JoinHostPort(n.host, strconv.Itoa(int(n.port)))),
		zap.Int("beacon_port", n.cfg.BeaconPort),
	)
	return nil
}

// Stop terminates the node: a leaving beacon is sent, every peer is
// disconnected, sockets are closed and the event channel is closed. Stop
// returns once all node goroutines have exited.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state.Load() {
	case NodeStateTerminated:
		return nil
	case NodeStateStopped:
		n.state.Store(NodeStateTerminated)
		close(n.done)
		n.events.close()
		n.events.run()
		n.metrics.unregister()
		return nil
	}

	select {
	case n.commands <- terminateCmd{}:
	case <-n.done:
	}
	err := n.grp.Wait()
	n.state.Store(NodeStateTerminated)
	n.metrics.unregister()
	n.log.Info("node stopped")
	return err
}

// SetHeader sets a header advertised in HELLO to peers met from now on.
func (n *Node) SetHeader(key, value string) error {
	if n.state.Load() == NodeStateStopped {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.state.Load() == NodeStateStopped {
			n.headers[key] = value
			return nil
		}
	}
	return n.send(setHeaderCmd{key: key, value: value})
}

// Join joins a group. Joining a group twice is a no-op.
func (n *Node) Join(group string) error {
	name, err := normalizeGroup(group)
	if err != nil {
		return err
	}
	return n.send(joinCmd{group: name})
}

// Leave leaves a group. Leaving a group we are not in is a no-op.
func (n *Node) Leave(group string) error {
	name, err := normalizeGroup(group)
	if err != nil {
		return err
	}
	return n.send(leaveCmd{group: name})
}

// Whisper sends payload to a single peer. Unknown peers are ignored.
func (n *Node) Whisper(peer string, payload []byte) error {
	return n.send(whisperCmd{peer: peer, payload: append([]byte(nil), payload...)})
}

// Shout sends payload to every peer known to be in group, whether or not
// this node joined it. A group no peer announced is ignored.
func (n *Node) Shout(group string, payload []byte) error {
	name, err := normalizeGroup(group)
	if err != nil {
		return err
	}
	return n.send(shoutCmd{group: name, payload: append([]byte(nil), payload...)})
}

// Peers returns the identities of all known peers, sorted.
func (n *Node) Peers() []string {
	var ids []string
	n.query(func() {
		ids = make([]string, 0, len(n.peers))
		for id := range n.peers {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	})
	return ids
}

// PeersByGroup returns the identities of the peers known in group, sorted.
func (n *Node) PeersByGroup(group string) []string {
	name, err := normalizeGroup(group)
	if err != nil {
		return nil
	}
	var ids []string
	n.query(func() {
		if g, ok := n.peerGroups[name]; ok {
			ids = g.memberIDs()
		}
	})
	return ids
}

// OwnGroups returns the groups this node joined, sorted.
func (n *Node) OwnGroups() []string {
	var names []string
	n.query(func() { names = groupNames(n.ownGroups) })
	return names
}

// PeerGroups returns the groups announced by peers, sorted.
func (n *Node) PeerGroups() []string {
	var names []string
	n.query(func() { names = groupNames(n.peerGroups) })
	return names
}

// PeerEndpoint returns the mailbox endpoint of a connected peer, or "".
func (n *Node) PeerEndpoint(peer string) string {
	var ep string
	n.query(func() {
		if p, ok := n.peers[peer]; ok {
			ep = p.currentEndpoint()
		}
	})
	return ep
}

// PeerHeader returns a header a peer announced in its HELLO.
func (n *Node) PeerHeader(peer, key string) (string, bool) {
	var (
		value string
		ok    bool
	)
	n.query(func() {
		if p, found := n.peers[peer]; found {
			value, ok = p.headers[key]
		}
	})
	return value, ok
}

// PeerName returns the name a peer announced in its HELLO, or "".
func (n *Node) PeerName(peer string) string {
	var name string
	n.query(func() {
		if p, ok := n.peers[peer]; ok {
			name = p.name
		}
	})
	return name
}

func (n *Node) send(cmd command) error {
	if n.state.Load() != NodeStateRunning {
		return ErrNotRunning
	}
	select {
	case n.commands <- cmd:
		return nil
	case <-n.done:
		return ErrNotRunning
	}
}

// query runs fn on the loop and waits for it. On a node that is not
// running fn is not called.
func (n *Node) query(fn func()) {
	q := queryCmd{fn: fn, done: make(chan struct{})}
	if err := n.send(q); err != nil {
		return
	}
	select {
	case <-q.done:
	case <-n.done:
	}
}

// run is the node loop. It is the only goroutine touching peers and groups.
func (n *Node) run() error {
	defer close(n.done)
	defer n.events.close()

	ticker := time.NewTicker(n.cfg.Interval)
	defer ticker.Stop()

	inbox := n.router.Inbox()
	discoveries := n.beacon.Discoveries()

	n.sendBeacon(n.port)
	for {
		select {
		case cmd := <-n.commands:
			if !n.handleCommand(cmd) {
				n.shutdown()
				return nil
			}
		case msg, ok := <-inbox:
			if !ok {
				inbox = nil
				continue
			}
			n.handleInbox(msg)
		case d, ok := <-discoveries:
			if !ok {
				discoveries = nil
				continue
			}
			n.handleBeacon(d)
		case <-ticker.C:
			n.sendBeacon(n.port)
			n.pingPeers(n.now())
		}
	}
}

func (n *Node) shutdown() {
	n.sendBeacon(0)
	for _, p := range n.peers {
		p.disconnect()
	}
	n.peers = make(map[string]*peer)
	n.ownGroups = make(map[string]*group)
	n.peerGroups = make(map[string]*group)
	n.metrics.peers.Set(0)

	if err := n.beacon.Close(); err != nil {
		n.log.Debug("closing beacon", zap.Error(err))
	}
	if err := n.router.Close(); err != nil {
		n.log.Debug("closing mailbox", zap.Error(err))
	}
}

// handleCommand applies cmd and reports whether the loop should go on.
func (n *Node) handleCommand(cmd command) bool {
	switch cmd := cmd.(type) {
	case joinCmd:
		n.joinOwnGroup(cmd.group)
	case leaveCmd:
		n.leaveOwnGroup(cmd.group)
	case whisperCmd:
		p, ok := n.peers[cmd.peer]
		if !ok {
			n.metrics.dropped.WithLabelValues(dropNoTarget).Inc()
			return true
		}
		p.send(&zre.Whisper{Content: cmd.payload})
	case shoutCmd:
		g, ok := n.peerGroups[cmd.group]
		if !ok {
			n.metrics.dropped.WithLabelValues(dropNoTarget).Inc()
			return true
		}
		g.send(&zre.Shout{Group: cmd.group, Content: cmd.payload})
	case setHeaderCmd:
		n.headers[cmd.key] = cmd.value
	case queryCmd:
		cmd.fn()
		close(cmd.done)
	case terminateCmd:
		return false
	}
	return true
}

func (n *Node) joinOwnGroup(name string) {
	if _, ok := n.ownGroups[name]; ok {
		return
	}
	n.ownGroups[name] = newGroup(name)
	n.status++
	n.sendPeers(&zre.Join{Group: name, Status: n.status})
	n.log.Debug("joined group", zap.String("group", name), zap.Uint8("status", n.status))
}

func (n *Node) leaveOwnGroup(name string) {
	if _, ok := n.ownGroups[name]; !ok {
		return
	}
	n.status++
	n.sendPeers(&zre.Leave{Group: name, Status: n.status})
	delete(n.ownGroups, name)
	n.log.Debug("left group", zap.String("group", name), zap.Uint8("status", n.status))
}

// sendPeers sends msg to every known peer, in identity order.
func (n *Node) sendPeers(msg zre.Message) {
	ids := make([]string, 0, len(n.peers))
	for id := range n.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n.peers[id].send(msg)
	}
}

func (n *Node) sendBeacon(port uint16) {
	frame, err := zre.Beacon{ID: n.uuid, Port: port}.MarshalBinary()
	if err != nil {
		n.log.Error("could not encode beacon", zap.Error(err))
		return
	}
	if err := n.beacon.Send(frame); err != nil {
		n.log.Debug("could not send beacon", zap.Error(err))
		return
	}
	n.metrics.beaconsSent.Inc()
}

// handleBeacon admits the sender of a beacon and refreshes it. A leaving
// beacon removes a known peer right away.
func (n *Node) handleBeacon(d *Discovery) {
	if d.ID == n.uuid {
		return
	}
	n.metrics.beaconsRecv.Inc()

	identity := zre.Identity(d.ID)
	if d.Port == 0 {
		if p, ok := n.peers[identity]; ok {
			n.log.Debug("peer left", zap.String("peer", identity))
			n.removePeer(p)
		}
		return
	}

	endpoint := "tcp://" + net.JoinHostPort(d.Addr.String(), strconv.Itoa(int(d.Port)))
	if p := n.requirePeer(identity, endpoint, ""); p != nil {
		p.refresh(n.now(), n.cfg.EvasiveTimeout, n.cfg.ExpiredTimeout)
	}
}

// requirePeer returns the peer for identity, creating and connecting it on
// first sighting. A known peer that lost its connection is reconnected.
func (n *Node) requirePeer(identity, endpoint, name string) *peer {
	if p, ok := n.peers[identity]; ok {
		if !p.connected {
			n.connectPeer(p, endpoint)
		}
		return p
	}

	n.purgePeer(endpoint)

	p := newPeer(identity, n.log, n.metrics)
	p.name = name
	if !n.connectPeer(p, endpoint) {
		return nil
	}
	p.refresh(n.now(), n.cfg.EvasiveTimeout, n.cfg.ExpiredTimeout)
	n.peers[identity] = p
	n.metrics.peers.Set(float64(len(n.peers)))

	n.log.Debug("peer entered", zap.String("peer", identity), zap.String("endpoint", endpoint))
	n.emit(newEnterEvent(p, n.now()))
	return p
}

// connectPeer opens the mailbox to p and greets it with HELLO.
func (n *Node) connectPeer(p *peer, endpoint string) bool {
	if err := p.connect(n.identity, endpoint, n.dial); err != nil {
		n.log.Warn("could not connect to peer",
			zap.String("peer", p.identity),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return false
	}
	p.send(n.hello())
	return true
}

// purgePeer disconnects any peer still bound to endpoint; a node that
// restarted on the same endpoint comes back with a new identity.
func (n *Node) purgePeer(endpoint string) {
	for _, p := range n.peers {
		if p.connected && p.endpoint == endpoint {
			n.log.Debug("purging peer on reused endpoint",
				zap.String("peer", p.identity),
				zap.String("endpoint", endpoint),
			)
			p.disconnect()
		}
	}
}

func (n *Node) hello() *zre.Hello {
	headers := make(map[string]string, len(n.headers))
	for k, v := range n.headers {
		headers[k] = v
	}
	return &zre.Hello{
		IPAddress: n.host,
		Mailbox:   n.port,
		Groups:    groupNames(n.ownGroups),
		Status:    n.status,
		Name:      n.name,
		Headers:   headers,
	}
}

// handleInbox decodes and dispatches one frame from the mailbox. Only HELLO
// may come from a peer that is not ready; anything else is dropped.
func (n *Node) handleInbox(in zmtp.Msg) {
	if len(in.Frames) != 1 {
		n.metrics.dropped.WithLabelValues(dropMalformed).Inc()
		return
	}
	msg, err := zre.Decode(in.Frames[0])
	if err != nil {
		n.metrics.dropped.WithLabelValues(dropMalformed).Inc()
		n.log.Debug("dropping malformed frame", zap.Error(err))
		return
	}
	n.metrics.received.WithLabelValues(msg.Kind().String()).Inc()

	identity := in.Identity
	p := n.peers[identity]
	if hello, ok := msg.(*zre.Hello); ok {
		endpoint := "tcp://" + net.JoinHostPort(hello.IPAddress, strconv.Itoa(int(hello.Mailbox)))
		p = n.requirePeer(identity, endpoint, hello.Name)
		if p == nil {
			return
		}
		p.ready = true
	}
	if p == nil || !p.ready {
		n.metrics.dropped.WithLabelValues(dropNotReady).Inc()
		n.log.Debug("ignoring message from peer that is not ready",
			zap.String("peer", identity),
			zap.Stringer("kind", msg.Kind()),
		)
		return
	}

	if !p.checkSequence(msg.Sequence()) {
		n.metrics.seqGaps.Inc()
		if n.seqLog.Allow() {
			n.log.Warn("lost messages from peer",
				zap.String("peer", identity),
				zap.Uint16("seq", msg.Sequence()),
			)
		}
	}
	p.refresh(n.now(), n.cfg.EvasiveTimeout, n.cfg.ExpiredTimeout)

	switch msg := msg.(type) {
	case *zre.Hello:
		n.onHello(p, msg)
	case *zre.Whisper:
		n.emit(newWhisperEvent(p, msg.Content, n.now()))
	case *zre.Shout:
		n.emit(newShoutEvent(p, msg.Group, msg.Content, n.now()))
	case *zre.Join:
		n.checkStatus(p, msg.Status)
		n.joinPeerGroup(p, msg.Group)
	case *zre.Leave:
		n.checkStatus(p, msg.Status)
		n.leavePeerGroup(p, msg.Group)
	case *zre.Ping:
		p.send(&zre.PingOK{})
	case *zre.PingOK:
		// refresh above is all a PING-OK is for
	}
}

func (n *Node) onHello(p *peer, msg *zre.Hello) {
	p.name = msg.Name
	for _, name := range msg.Groups {
		n.joinPeerGroup(p, name)
	}
	p.status = msg.Status
	p.setHeaders(msg.Headers)
}

// checkStatus advances the peer status counter and compares it with the
// one carried by JOIN or LEAVE.
func (n *Node) checkStatus(p *peer, status byte) {
	p.status++
	if p.status != status {
		n.log.Debug("peer status out of step",
			zap.String("peer", p.identity),
			zap.Uint8("want", p.status),
			zap.Uint8("got", status),
		)
		p.status = status
	}
}

func (n *Node) joinPeerGroup(p *peer, name string) {
	g, ok := n.peerGroups[name]
	if !ok {
		g = newGroup(name)
		n.peerGroups[name] = g
	}
	if !g.join(p) {
		return
	}
	p.groups[name] = struct{}{}
	n.emit(newJoinEvent(p, name, n.now()))
}

func (n *Node) leavePeerGroup(p *peer, name string) {
	g, ok := n.peerGroups[name]
	if !ok || !g.leave(p) {
		return
	}
	delete(p.groups, name)
	if g.empty() {
		delete(n.peerGroups, name)
	}
	n.emit(newLeaveEvent(p, name, n.now()))
}

// pingPeers is the liveness sweep: expired peers are removed, evasive ones
// are pinged on every tick until they answer or expire.
func (n *Node) pingPeers(now time.Time) {
	for _, p := range n.peers {
		switch {
		case !now.Before(p.expiredAt):
			n.log.Debug("peer expired", zap.String("peer", p.identity))
			n.removePeer(p)
		case !now.Before(p.evasiveAt):
			p.send(&zre.Ping{})
		}
	}
}

// removePeer emits EXIT, drops p from every peer group and forgets it.
func (n *Node) removePeer(p *peer) {
	n.emit(newExitEvent(p, n.now()))
	for _, name := range p.groupNames() {
		if g, ok := n.peerGroups[name]; ok {
			g.leave(p)
			if g.empty() {
				delete(n.peerGroups, name)
			}
		}
	}
	p.groups = make(map[string]struct{})
	p.disconnect()
	delete(n.peers, p.identity)
	n.metrics.peers.Set(float64(len(n.peers)))
}

func (n *Node) emit(e *Event) {
	n.events.push(e)
	n.metrics.events.WithLabelValues(string(e.Type)).Inc()
}

func (n *Node) dialDealer(identity, endpoint string) (mailbox, error) {
	d := zmtp.NewDealer(identity,
		zmtp.WithLogger(n.log),
		zmtp.WithSendHWM(n.cfg.SendHWM),
		zmtp.WithDialerRetry(n.cfg.Interval),
		zmtp.WithDialerMaxRetries(-1),
	)
	if err := d.Connect(endpoint); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func bindMailbox(r *zmtp.Router, port int) (uint16, error) {
	if port != 0 {
		if err := r.Listen("tcp://*:" + strconv.Itoa(port)); err != nil {
			return 0, fmt.Errorf("zyre: could not bind mailbox: %w", err)
		}
		return uint16(port), nil
	}

	var err error
	for i := 0; i < mailboxBindTries; i++ {
		port = MailboxPortMin + rand.Intn(MailboxPortMax-MailboxPortMin+1)
		if err = r.Listen("tcp://*:" + strconv.Itoa(port)); err == nil {
			return uint16(port), nil
		}
	}
	return 0, fmt.Errorf("zyre: could not bind a dynamic mailbox port: %w", err)
}

// resolveHost picks the address advertised to peers: the configured host,
// else the first IPv4 address of the configured interface, else of any
// interface that is up, else loopback.
func resolveHost(cfg *Config) (string, error) {
	if cfg.Host != "" {
		return cfg.Host, nil
	}

	var addrs []net.Addr
	if cfg.Interface != "" {
		iface, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			return "", fmt.Errorf("zyre: unknown interface %q: %w", cfg.Interface, err)
		}
		if addrs, err = iface.Addrs(); err != nil {
			return "", fmt.Errorf("zyre: could not list addresses of %q: %w", cfg.Interface, err)
		}
		if ip := firstIPv4(addrs, true); ip != "" {
			return ip, nil
		}
		return "", fmt.Errorf("zyre: interface %q has no IPv4 address", cfg.Interface)
	}

	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
				continue
			}
			ifAddrs, err := iface.Addrs()
			if err != nil {
				continue
			}
			if ip := firstIPv4(ifAddrs, false); ip != "" {
				return ip, nil
			}
		}
	}
	return "127.0.0.1", nil
}

func firstIPv4(addrs []net.Addr, allowLoopback bool) string {
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP.To4()
		if ip == nil || (!allowLoopback && ip.IsLoopback()) {
			continue
		}
		return ip.String()
	}
	return ""
}

func normalizeGroup(name string) (string, error) {
	name = norm.NFC.String(name)
	if name == "" || len(name) > zre.MaxStringSize {
		return "", fmt.Errorf("%w: %q", ErrInvalidGroup, name)
	}
	return name, nil
}

func groupNames(groups map[string]*group) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
