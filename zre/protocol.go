// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zre implements the wire format of the ZeroMQ Realtime Exchange
// protocol: the seven peer-to-peer message kinds exchanged over node
// mailboxes and the fixed-size UDP discovery beacon.
//
// The package holds no state. Encode and Decode are pure transforms between
// Message values and byte frames; ParseBeacon and Beacon.MarshalBinary do the
// same for discovery frames.
package zre

import (
	"errors"
	"fmt"
)

// Beacon frame constants.
const (
	BeaconPrefix  = "ZRE"
	BeaconVersion = 0x01
	BeaconSize    = 22 // 3 bytes prefix + 1 byte version + 16 bytes UUID + 2 bytes port

	// IDSize is the size of a node identifier in bytes.
	IDSize = 16
)

// Field limits imposed by the encoding.
const (
	MaxStringSize = 255
	MaxLongString = 1<<32 - 1
)

// Kind discriminates the message variants on the wire.
type Kind uint8

// ZRE message kinds.
const (
	KindHello   Kind = 1 // Greet a peer so it can connect back to us
	KindWhisper Kind = 2 // Send a message to a peer
	KindShout   Kind = 3 // Send a message to a group
	KindJoin    Kind = 4 // Join a group
	KindLeave   Kind = 5 // Leave a group
	KindPing    Kind = 6 // Ping a peer that has gone silent
	KindPingOK  Kind = 7 // Reply to a peer's ping
)

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "HELLO"
	case KindWhisper:
		return "WHISPER"
	case KindShout:
		return "SHOUT"
	case KindJoin:
		return "JOIN"
	case KindLeave:
		return "LEAVE"
	case KindPing:
		return "PING"
	case KindPingOK:
		return "PING-OK"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

var (
	// ErrMalformedMessage reports a frame that could not be decoded.
	// Callers drop the frame; the connection it arrived on stays open.
	ErrMalformedMessage = errors.New("zre: malformed message")

	// ErrFieldTooLong reports a field that does not fit its length prefix.
	ErrFieldTooLong = errors.New("zre: field too long")

	// ErrBeaconInvalid reports a discovery frame of the wrong size,
	// prefix or version.
	ErrBeaconInvalid = errors.New("zre: invalid beacon")
)
