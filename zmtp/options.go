// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetry      = 250 * time.Millisecond
	defaultTimeout    = 5 * time.Second
	defaultMaxRetries = 10
	defaultHWM        = 1000
)

// Option configures some aspect of a socket.
type Option func(o *options)

type options struct {
	retry      time.Duration
	maxRetries int
	timeout    time.Duration
	sendHWM    int
	recvHWM    int
	log        *zap.Logger
}

func newOptions(opts ...Option) options {
	o := options{
		retry:      defaultRetry,
		maxRetries: defaultMaxRetries,
		timeout:    defaultTimeout,
		sendHWM:    defaultHWM,
		recvHWM:    defaultHWM,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets a dedicated logger for the socket.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithDialerRetry configures the time to wait before two failed attempts
// at dialing an endpoint.
func WithDialerRetry(retry time.Duration) Option {
	return func(o *options) {
		o.retry = retry
	}
}

// WithDialerMaxRetries configures the maximum number of retries
// when dialing an endpoint (-1 means infinite retries).
func WithDialerMaxRetries(maxRetries int) Option {
	return func(o *options) {
		o.maxRetries = maxRetries
	}
}

// WithDialerTimeout sets the maximum amount of time a dial, including the
// ZMTP handshake, will wait to complete.
func WithDialerTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithSendHWM bounds the number of messages a Dealer queues before Send
// starts failing with ErrWouldBlock.
func WithSendHWM(hwm int) Option {
	return func(o *options) {
		if hwm > 0 {
			o.sendHWM = hwm
		}
	}
}

// WithRecvHWM bounds the number of received messages a Router buffers
// before its connection readers stop pulling from the network.
func WithRecvHWM(hwm int) Option {
	return func(o *options) {
		if hwm > 0 {
			o.recvHWM = hwm
		}
	}
}
