// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zre

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"unicode/utf8"
)

// Message is one of the seven ZRE message kinds.
//
// The set of implementations is closed: *Hello, *Whisper, *Shout, *Join,
// *Leave, *Ping and *PingOK.
type Message interface {
	Kind() Kind
	Sequence() uint16
	SetSequence(seq uint16)

	encodeBody(w *writer) error
	decodeBody(r *reader) error
}

// Envelope carries the per-direction sequence number shared by every kind.
type Envelope struct {
	Seq uint16
}

// Sequence returns the message sequence number.
func (e *Envelope) Sequence() uint16 { return e.Seq }

// SetSequence stamps the message with seq.
func (e *Envelope) SetSequence(seq uint16) { e.Seq = seq }

// Hello greets a peer with everything it needs to connect back to us.
type Hello struct {
	Envelope
	IPAddress string            // Sender's IP address
	Mailbox   uint16            // Sender's mailbox port
	Groups    []string          // Groups the sender belongs to
	Status    byte              // Sender's group status counter
	Name      string            // Sender's public name
	Headers   map[string]string // Sender's header values
}

// Whisper carries a payload addressed to a single peer.
type Whisper struct {
	Envelope
	Content []byte
}

// Shout carries a payload addressed to a group.
type Shout struct {
	Envelope
	Group   string
	Content []byte
}

// Join announces that the sender joined a group.
type Join struct {
	Envelope
	Group  string
	Status byte
}

// Leave announces that the sender left a group.
type Leave struct {
	Envelope
	Group  string
	Status byte
}

// Ping probes a peer that has gone quiet.
type Ping struct {
	Envelope
}

// PingOK answers a Ping.
type PingOK struct {
	Envelope
}

func (*Hello) Kind() Kind   { return KindHello }
func (*Whisper) Kind() Kind { return KindWhisper }
func (*Shout) Kind() Kind   { return KindShout }
func (*Join) Kind() Kind    { return KindJoin }
func (*Leave) Kind() Kind   { return KindLeave }
func (*Ping) Kind() Kind    { return KindPing }
func (*PingOK) Kind() Kind  { return KindPingOK }

// Encode serializes msg into a single frame:
//
//	kind (1 byte) | sequence (2 bytes, big endian) | kind-specific fields
func Encode(msg Message) ([]byte, error) {
	w := &writer{}
	w.buf.WriteByte(byte(msg.Kind()))
	w.uint16(msg.Sequence())
	if err := msg.encodeBody(w); err != nil {
		return nil, fmt.Errorf("zre: could not encode %v: %w", msg.Kind(), err)
	}
	return w.buf.Bytes(), nil
}

// Decode parses a frame produced by Encode. Any failure wraps
// ErrMalformedMessage.
func Decode(data []byte) (Message, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrMalformedMessage, len(data))
	}

	var msg Message
	switch kind := Kind(data[0]); kind {
	case KindHello:
		msg = &Hello{}
	case KindWhisper:
		msg = &Whisper{}
	case KindShout:
		msg = &Shout{}
	case KindJoin:
		msg = &Join{}
	case KindLeave:
		msg = &Leave{}
	case KindPing:
		msg = &Ping{}
	case KindPingOK:
		msg = &PingOK{}
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedMessage, uint8(kind))
	}

	r := &reader{data: data[1:]}
	seq, err := r.uint16()
	if err != nil {
		return nil, err
	}
	msg.SetSequence(seq)

	if err := msg.decodeBody(r); err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrMalformedMessage, msg.Kind(), err)
	}
	if r.len() != 0 {
		return nil, fmt.Errorf("%w: %v: %d trailing bytes", ErrMalformedMessage, msg.Kind(), r.len())
	}
	return msg, nil
}

func (h *Hello) encodeBody(w *writer) error {
	if err := w.string(h.IPAddress); err != nil {
		return fmt.Errorf("ipaddress: %w", err)
	}
	w.uint16(h.Mailbox)
	if err := w.strings(h.Groups); err != nil {
		return fmt.Errorf("groups: %w", err)
	}
	w.buf.WriteByte(h.Status)
	if err := w.string(h.Name); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	if err := w.hash(h.Headers); err != nil {
		return fmt.Errorf("headers: %w", err)
	}
	return nil
}

func (h *Hello) decodeBody(r *reader) error {
	var err error
	if h.IPAddress, err = r.string(); err != nil {
		return fmt.Errorf("ipaddress: %w", err)
	}
	if h.Mailbox, err = r.uint16(); err != nil {
		return fmt.Errorf("mailbox: %w", err)
	}
	if h.Groups, err = r.strings(); err != nil {
		return fmt.Errorf("groups: %w", err)
	}
	if h.Status, err = r.byte(); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if h.Name, err = r.string(); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	if h.Headers, err = r.hash(); err != nil {
		return fmt.Errorf("headers: %w", err)
	}
	return nil
}

func (m *Whisper) encodeBody(w *writer) error {
	return w.block(m.Content)
}

func (m *Whisper) decodeBody(r *reader) error {
	var err error
	m.Content, err = r.block()
	return err
}

func (m *Shout) encodeBody(w *writer) error {
	if err := w.string(m.Group); err != nil {
		return fmt.Errorf("group: %w", err)
	}
	return w.block(m.Content)
}

func (m *Shout) decodeBody(r *reader) error {
	var err error
	if m.Group, err = r.string(); err != nil {
		return fmt.Errorf("group: %w", err)
	}
	m.Content, err = r.block()
	return err
}

func (m *Join) encodeBody(w *writer) error {
	if err := w.string(m.Group); err != nil {
		return fmt.Errorf("group: %w", err)
	}
	w.buf.WriteByte(m.Status)
	return nil
}

func (m *Join) decodeBody(r *reader) error {
	var err error
	if m.Group, err = r.string(); err != nil {
		return fmt.Errorf("group: %w", err)
	}
	m.Status, err = r.byte()
	return err
}

func (m *Leave) encodeBody(w *writer) error {
	if err := w.string(m.Group); err != nil {
		return fmt.Errorf("group: %w", err)
	}
	w.buf.WriteByte(m.Status)
	return nil
}

func (m *Leave) decodeBody(r *reader) error {
	var err error
	if m.Group, err = r.string(); err != nil {
		return fmt.Errorf("group: %w", err)
	}
	m.Status, err = r.byte()
	return err
}

func (*Ping) encodeBody(*writer) error   { return nil }
func (*Ping) decodeBody(*reader) error   { return nil }
func (*PingOK) encodeBody(*writer) error { return nil }
func (*PingOK) decodeBody(*reader) error { return nil }

// writer appends ZRE field encodings.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// string writes a short string: 1-byte length then bytes.
func (w *writer) string(s string) error {
	if len(s) > MaxStringSize {
		return fmt.Errorf("%w: %d bytes", ErrFieldTooLong, len(s))
	}
	w.buf.WriteByte(byte(len(s)))
	w.buf.WriteString(s)
	return nil
}

// longString writes a 4-byte length then bytes.
func (w *writer) longString(s string) error {
	if uint64(len(s)) > MaxLongString {
		return fmt.Errorf("%w: %d bytes", ErrFieldTooLong, len(s))
	}
	w.uint32(uint32(len(s)))
	w.buf.WriteString(s)
	return nil
}

func (w *writer) strings(list []string) error {
	w.uint32(uint32(len(list)))
	for _, s := range list {
		if err := w.string(s); err != nil {
			return err
		}
	}
	return nil
}

// hash writes a count-prefixed map with keys in sorted order so the same
// map always encodes to the same bytes.
func (w *writer) hash(m map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.uint32(uint32(len(keys)))
	for _, k := range keys {
		if err := w.string(k); err != nil {
			return err
		}
		if err := w.longString(m[k]); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) block(b []byte) error {
	if uint64(len(b)) > MaxLongString {
		return fmt.Errorf("%w: %d bytes", ErrFieldTooLong, len(b))
	}
	w.uint32(uint32(len(b)))
	w.buf.Write(b)
	return nil
}

// reader consumes ZRE field encodings from a frame.
type reader struct {
	data []byte
}

func (r *reader) len() int { return len(r.data) }

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || n > len(r.data) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrMalformedMessage, n, len(r.data))
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) text(n int) (string, error) {
	b, err := r.next(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid UTF-8", ErrMalformedMessage)
	}
	return string(b), nil
}

func (r *reader) string() (string, error) {
	n, err := r.byte()
	if err != nil {
		return "", err
	}
	return r.text(int(n))
}

func (r *reader) longString() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.len()) {
		return "", fmt.Errorf("%w: long string of %d bytes exceeds frame", ErrMalformedMessage, n)
	}
	return r.text(int(n))
}

func (r *reader) strings() ([]string, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	// every entry needs at least its length byte
	if uint64(n) > uint64(r.len()) {
		return nil, fmt.Errorf("%w: list of %d entries exceeds frame", ErrMalformedMessage, n)
	}
	list := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := r.string()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		list = append(list, s)
	}
	return list, nil
}

func (r *reader) hash() (map[string]string, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	// 1 byte key length + 4 bytes value length per entry at minimum
	if uint64(n)*5 > uint64(r.len()) {
		return nil, fmt.Errorf("%w: hash of %d entries exceeds frame", ErrMalformedMessage, n)
	}
	m := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.string()
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		v, err := r.longString()
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", k, err)
		}
		m[k] = v
	}
	return m, nil
}

func (r *reader) block() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.len()) {
		return nil, fmt.Errorf("%w: block of %d bytes exceeds frame", ErrMalformedMessage, n)
	}
	b, err := r.next(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}
