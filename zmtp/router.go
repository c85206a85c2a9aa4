// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Router accepts DEALER connections and delivers every inbound message,
// tagged with the sender's identity, on a single inbox channel.
type Router struct {
	id   string
	opts options
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	grp    *errgroup.Group

	inbox chan Msg

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	closed   bool
}

// NewRouter returns a new ROUTER socket announcing the given identity.
func NewRouter(id string, opts ...Option) *Router {
	o := newOptions(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	grp, ctx := errgroup.WithContext(ctx)
	return &Router{
		id:     id,
		opts:   o,
		log:    o.log.With(zap.String("socket", string(RouterType))),
		ctx:    ctx,
		cancel: cancel,
		grp:    grp,
		inbox:  make(chan Msg, o.recvHWM),
		conns:  make(map[*Conn]struct{}),
	}
}

// Listen binds the router to endpoint, of the form tcp://host:port.
// A host of "*" binds all interfaces.
func (r *Router) Listen(endpoint string) error {
	addr, err := splitAddr(endpoint)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.listener != nil {
		return fmt.Errorf("zmtp: router already listening on %s", r.listener.Addr())
	}

	var lc net.ListenConfig
	l, err := lc.Listen(r.ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("zmtp: could not listen to %q: %w", endpoint, err)
	}
	r.listener = l
	r.grp.Go(func() error { return r.accept(l) })
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Inbox returns the channel of received messages. It is closed once the
// router is closed and all connection readers have exited.
func (r *Router) Inbox() <-chan Msg {
	return r.inbox
}

func (r *Router) accept(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if r.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.log.Debug("accept failed", zap.Error(err))
			continue
		}

		r.grp.Go(func() error {
			r.serve(conn)
			return nil
		})
	}
}

func (r *Router) serve(raw net.Conn) {
	stop := context.AfterFunc(r.ctx, func() { _ = raw.Close() })
	defer stop()

	zc, err := Open(raw, RouterType, r.id, true, r.opts.timeout)
	if err != nil {
		r.log.Debug("handshake failed",
			zap.Stringer("remote", raw.RemoteAddr()),
			zap.Error(err),
		)
		_ = raw.Close()
		return
	}
	if !r.addConn(zc) {
		_ = zc.Close()
		return
	}
	defer r.rmConn(zc)

	identity := zc.Peer.Identity
	if identity == "" {
		identity = uuid.NewString()
	}
	r.log.Debug("connection accepted",
		zap.Stringer("remote", raw.RemoteAddr()),
		zap.Int("identity_len", len(identity)),
	)

	for {
		frames, err := zc.RecvMsg()
		if err != nil {
			if r.ctx.Err() == nil {
				r.log.Debug("connection closed",
					zap.Stringer("remote", raw.RemoteAddr()),
					zap.Error(err),
				)
			}
			return
		}
		select {
		case r.inbox <- Msg{Identity: identity, Frames: frames}:
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Router) addConn(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

func (r *Router) rmConn(c *Conn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
	_ = c.Close()
}

// Close stops accepting, closes every connection and waits for the reader
// goroutines to exit before closing the inbox.
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.cancel()

	var err error
	if r.listener != nil {
		err = r.listener.Close()
	}
	for c := range r.conns {
		_ = c.Close()
	}
	r.mu.Unlock()

	_ = r.grp.Wait()
	close(r.inbox)
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// splitAddr turns tcp://host:port into a host:port suitable for net.
func splitAddr(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", errInvalidAddress, endpoint, err)
	}
	if u.Scheme != "tcp" {
		return "", fmt.Errorf("%w %q: unsupported transport %q", errInvalidAddress, endpoint, u.Scheme)
	}
	host, port := u.Hostname(), u.Port()
	if port == "" {
		return "", fmt.Errorf("%w %q: missing port", errInvalidAddress, endpoint)
	}
	if host == "*" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, port), nil
}
