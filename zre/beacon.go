// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zre

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Beacon is the UDP presence announcement of a node.
//
// Wire format:
//
//	"ZRE"   3 bytes
//	version 1 byte, 0x01
//	UUID    16 bytes
//	port    2 bytes, network order
//
// A port of zero announces that the node is leaving the network.
type Beacon struct {
	ID   uuid.UUID
	Port uint16
}

// Silent reports whether the beacon announces a departing node.
func (b Beacon) Silent() bool { return b.Port == 0 }

// MarshalBinary encodes the 22-byte beacon frame.
func (b Beacon) MarshalBinary() ([]byte, error) {
	frame := make([]byte, BeaconSize)
	copy(frame[0:3], BeaconPrefix)
	frame[3] = BeaconVersion
	copy(frame[4:20], b.ID[:])
	binary.BigEndian.PutUint16(frame[20:22], b.Port)
	return frame, nil
}

// ParseBeacon decodes a beacon frame. Foreign traffic on the beacon port is
// expected; callers discard frames that fail with ErrBeaconInvalid.
func ParseBeacon(data []byte) (Beacon, error) {
	if len(data) != BeaconSize {
		return Beacon{}, fmt.Errorf("%w: size %d", ErrBeaconInvalid, len(data))
	}
	if string(data[0:3]) != BeaconPrefix {
		return Beacon{}, fmt.Errorf("%w: prefix %q", ErrBeaconInvalid, data[0:3])
	}
	if data[3] != BeaconVersion {
		return Beacon{}, fmt.Errorf("%w: version %d", ErrBeaconInvalid, data[3])
	}

	var b Beacon
	copy(b.ID[:], data[4:20])
	b.Port = binary.BigEndian.Uint16(data[20:22])
	return b, nil
}

// Identity renders a node id the way it travels as a mailbox identity:
// 32 uppercase hex digits, no separators.
func Identity(id uuid.UUID) string {
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// ParseIdentity is the inverse of Identity.
func ParseIdentity(s string) (uuid.UUID, error) {
	var id uuid.UUID
	if len(s) != 2*IDSize {
		return id, fmt.Errorf("zre: identity %q: want %d hex digits", s, 2*IDSize)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("zre: identity %q: %w", s, err)
	}
	return id, nil
}
