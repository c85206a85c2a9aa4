// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/destiny/zyre/zmtp"
	"github.com/destiny/zyre/zre"
)

// mailbox is the outbound connection to one peer.
type mailbox interface {
	Send(frames ...[]byte) error
	Close() error
}

// dialFunc opens a mailbox to endpoint, tagged with the local identity.
type dialFunc func(identity, endpoint string) (mailbox, error)

// peer is the state kept about one remote node. It is owned by the node
// loop and never shared.
type peer struct {
	identity  string            // Remote identity
	name      string            // Remote name, from HELLO
	endpoint  string            // Mailbox endpoint we connect to
	mailbox   mailbox           // Outbound connection
	connected bool              // Messages are sent
	ready     bool              // HELLO received, survives reconnects
	status    byte              // Remote status counter
	sentSeq   uint16            // Last sequence sent
	wantSeq   uint16            // Last sequence received
	evasiveAt time.Time         // Silent past this point: ping
	expiredAt time.Time         // Silent past this point: drop
	headers   map[string]string // Remote headers, from HELLO
	groups    map[string]struct{}

	log     *zap.Logger
	metrics *metrics
}

func newPeer(identity string, log *zap.Logger, m *metrics) *peer {
	return &peer{
		identity: identity,
		headers:  make(map[string]string),
		groups:   make(map[string]struct{}),
		log:      log.With(zap.String("peer", identity)),
		metrics:  m,
	}
}

// connect opens the outbound mailbox to endpoint. Frames are tagged with
// self so the remote router can attribute them.
func (p *peer) connect(self, endpoint string, dial dialFunc) error {
	mb, err := dial(self, endpoint)
	if err != nil {
		return err
	}
	p.mailbox = mb
	p.endpoint = endpoint
	p.connected = true
	return nil
}

// disconnect drops the outbound mailbox. Calling it twice is harmless.
// The remote keeps its record of us, so a later reconnect stays ready.
func (p *peer) disconnect() {
	if !p.connected {
		return
	}
	if err := p.mailbox.Close(); err != nil {
		p.log.Debug("closing mailbox", zap.Error(err))
	}
	p.mailbox = nil
	p.connected = false
}

// send stamps msg with the next sequence number and queues it. Messages
// to a disconnected peer are dropped without consuming a sequence number.
// A full queue drops the message; any other failure disconnects the peer.
func (p *peer) send(msg zre.Message) bool {
	if !p.connected {
		return false
	}

	p.sentSeq++
	msg.SetSequence(p.sentSeq)
	frame, err := zre.Encode(msg)
	if err != nil {
		p.log.Warn("could not encode message", zap.Stringer("kind", msg.Kind()), zap.Error(err))
		p.metrics.dropped.WithLabelValues(dropMalformed).Inc()
		return false
	}

	switch err := p.mailbox.Send(frame); {
	case err == nil:
		p.metrics.sent.WithLabelValues(msg.Kind().String()).Inc()
		return true
	case errors.Is(err, zmtp.ErrWouldBlock):
		p.metrics.dropped.WithLabelValues(dropQueueFull).Inc()
		p.log.Debug("send queue full, message dropped", zap.Stringer("kind", msg.Kind()))
		return false
	default:
		p.metrics.dropped.WithLabelValues(dropSendFailed).Inc()
		p.log.Warn("send failed, disconnecting", zap.Error(err))
		p.disconnect()
		return false
	}
}

// refresh pushes both liveness deadlines out from now.
func (p *peer) refresh(now time.Time, evasive, expired time.Duration) {
	p.evasiveAt = now.Add(evasive)
	p.expiredAt = now.Add(expired)
}

// checkSequence advances the expected sequence number and reports whether
// seq matched it. On a mismatch the expectation resynchronizes to seq, so a
// single loss is reported once.
func (p *peer) checkSequence(seq uint16) bool {
	p.wantSeq++
	if p.wantSeq == seq {
		return true
	}
	p.wantSeq = seq
	return false
}

// currentEndpoint returns the endpoint while connected, "" otherwise.
func (p *peer) currentEndpoint() string {
	if !p.connected {
		return ""
	}
	return p.endpoint
}

func (p *peer) setHeaders(h map[string]string) {
	p.headers = make(map[string]string, len(h))
	for k, v := range h {
		p.headers[k] = v
	}
}

func (p *peer) groupNames() []string {
	names := make([]string, 0, len(p.groups))
	for name := range p.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
