// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zmtp implements the subset of the ZeroMQ Message Transport
// Protocol (ZMTP 3.0, NULL mechanism) that ZRE mailboxes need: a ROUTER
// that multiplexes inbound DEALER connections and attributes each message to
// the sender's identity, and a DEALER whose sends never block the caller.
//
// See https://rfc.zeromq.org/spec/23/ for the protocol.
package zmtp

import (
	"errors"
)

var (
	// ErrClosed is returned by operations on a closed socket or connection.
	ErrClosed = errors.New("zmtp: use of closed socket")

	// ErrWouldBlock is returned by Dealer.Send when the send queue is at its
	// high-water mark. The message was not queued.
	ErrWouldBlock = errors.New("zmtp: send queue full")

	errInvalidAddress = errors.New("zmtp: invalid address")
	errBadGreeting    = errors.New("zmtp: bad greeting")
	errBadSec         = errors.New("zmtp: unsupported security mechanism")
	errBadCommand     = errors.New("zmtp: bad command")
	errBadFrame       = errors.New("zmtp: bad frame")
	errOverflow       = errors.New("zmtp: frame too large")
)

// SocketType is a ZeroMQ socket type as announced in the READY metadata.
type SocketType string

const (
	DealerType SocketType = "DEALER"
	RouterType SocketType = "ROUTER"
)

// IsCompatible reports whether a socket of type t may talk to a peer of
// type peer.
func (t SocketType) IsCompatible(peer SocketType) bool {
	switch t {
	case DealerType:
		return peer == RouterType || peer == DealerType
	case RouterType:
		return peer == DealerType || peer == RouterType
	default:
		return false
	}
}

// Msg is a multipart message received by a Router, attributed to the
// identity of the connection it arrived on.
type Msg struct {
	Identity string
	Frames   [][]byte
}
