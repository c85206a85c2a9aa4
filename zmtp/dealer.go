// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Dealer is an outbound DEALER socket bound to a single endpoint. Sends are
// queued up to the high-water mark and written by a background goroutine
// that dials, and redials, the endpoint.
type Dealer struct {
	id   string
	opts options
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	out       chan [][]byte
	connected int32
	started   int32
	closed    int32
}

// NewDealer returns a new DEALER socket announcing the given identity.
func NewDealer(id string, opts ...Option) *Dealer {
	o := newOptions(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	return &Dealer{
		id:     id,
		opts:   o,
		log:    o.log.With(zap.String("socket", string(DealerType))),
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan [][]byte, o.sendHWM),
	}
}

// Connect starts connecting to endpoint in the background. It only fails
// on a malformed endpoint or on a closed or already connected dealer.
func (d *Dealer) Connect(endpoint string) error {
	addr, err := splitAddr(endpoint)
	if err != nil {
		return err
	}
	if atomic.LoadInt32(&d.closed) == 1 {
		return ErrClosed
	}
	if !atomic.CompareAndSwapInt32(&d.started, 0, 1) {
		return fmt.Errorf("zmtp: dealer already connected")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(endpoint, addr)
	}()
	return nil
}

// Connected reports whether a ZMTP session is currently established.
func (d *Dealer) Connected() bool {
	return atomic.LoadInt32(&d.connected) == 1
}

// Send queues a multipart message. It never blocks: a full queue yields
// ErrWouldBlock and the message is dropped.
func (d *Dealer) Send(frames ...[]byte) error {
	if atomic.LoadInt32(&d.closed) == 1 {
		return ErrClosed
	}
	select {
	case d.out <- frames:
		return nil
	default:
		return ErrWouldBlock
	}
}

// Close stops the background goroutine and drops any queued messages.
func (d *Dealer) Close() error {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return nil
	}
	d.cancel()
	d.wg.Wait()
	return nil
}

func (d *Dealer) run(endpoint, addr string) {
	log := d.log.With(zap.String("endpoint", endpoint))
	for {
		conn, err := d.dial(addr)
		if err != nil {
			if d.ctx.Err() == nil {
				log.Warn("could not connect", zap.Error(err))
			}
			return
		}
		log.Debug("connected")

		atomic.StoreInt32(&d.connected, 1)
		err = d.pump(conn)
		atomic.StoreInt32(&d.connected, 0)
		_ = conn.Close()

		if d.ctx.Err() != nil {
			return
		}
		log.Debug("connection lost, redialing", zap.Error(err))
	}
}

// dial retries until a ZMTP session is up, the retry budget is spent or the
// dealer is closed.
func (d *Dealer) dial(addr string) (*Conn, error) {
	dialer := net.Dialer{Timeout: d.opts.timeout}
	retries := 0
	for {
		raw, err := dialer.DialContext(d.ctx, "tcp", addr)
		if err == nil {
			var zc *Conn
			stop := context.AfterFunc(d.ctx, func() { _ = raw.Close() })
			zc, err = Open(raw, DealerType, d.id, false, d.opts.timeout)
			stop()
			if err == nil {
				return zc, nil
			}
			_ = raw.Close()
		}
		if d.ctx.Err() != nil {
			return nil, d.ctx.Err()
		}
		if d.opts.maxRetries != -1 && retries >= d.opts.maxRetries {
			return nil, fmt.Errorf("zmtp: could not dial to %q (retry=%v): %w", addr, d.opts.retry, err)
		}
		retries++

		select {
		case <-time.After(d.opts.retry):
		case <-d.ctx.Done():
			return nil, d.ctx.Err()
		}
	}
}

// pump writes queued messages to conn until the dealer closes or the
// connection fails. A reader goroutine drains inbound traffic so heartbeats
// get answered and a dead peer is noticed without waiting for a write.
func (d *Dealer) pump(conn *Conn) error {
	dead := make(chan error, 1)
	go func() {
		for {
			if _, err := conn.RecvMsg(); err != nil {
				dead <- err
				return
			}
		}
	}()
	// closing the dealer must also unblock a write to a peer that stopped reading
	stop := context.AfterFunc(d.ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
		<-dead
	}()

	for {
		select {
		case <-d.ctx.Done():
			return d.ctx.Err()
		case err := <-dead:
			dead <- err
			return err
		case frames := <-d.out:
			if err := conn.SendMsg(frames); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				return fmt.Errorf("zmtp: send failed: %w", err)
			}
		}
	}
}
