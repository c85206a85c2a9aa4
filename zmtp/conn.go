// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	hasMoreBitFlag   = 0x1
	isLongBitFlag    = 0x2
	isCommandBitFlag = 0x4

	greetingSize  = 64
	mechanismSize = 20
	nullMechanism = "NULL"

	cmdReady = "READY"
	cmdPing  = "PING"
	cmdPong  = "PONG"

	propSocketType = "Socket-Type"
	propIdentity   = "Identity"

	// larger frames are treated as a corrupt stream
	maxFrameSize = 64 << 20
)

// Metadata is the property set exchanged in the READY command.
type Metadata map[string]string

// Conn implements the ZeroMQ Message Transport Protocol as defined
// in https://rfc.zeromq.org/spec:23/ZMTP/, restricted to the NULL
// security mechanism.
type Conn struct {
	typ    SocketType
	id     string
	rw     net.Conn
	Server bool
	Peer   struct {
		Type     SocketType
		Identity string
		Meta     Metadata
	}

	wmu    sync.Mutex
	closed int32
}

// Open performs a complete ZMTP handshake over rw, announcing the given
// socket type and identity. The handshake must finish within timeout.
func Open(rw net.Conn, typ SocketType, id string, server bool, timeout time.Duration) (*Conn, error) {
	if rw == nil {
		return nil, fmt.Errorf("zmtp: invalid nil connection")
	}

	conn := &Conn{
		typ:    typ,
		id:     id,
		rw:     rw,
		Server: server,
	}

	if timeout > 0 {
		_ = rw.SetDeadline(time.Now().Add(timeout))
		defer rw.SetDeadline(time.Time{})
	}

	if err := conn.greet(); err != nil {
		return nil, fmt.Errorf("zmtp: could not exchange greetings: %w", err)
	}
	if err := conn.ready(); err != nil {
		return nil, fmt.Errorf("zmtp: could not perform NULL handshake: %w", err)
	}
	if !conn.typ.IsCompatible(conn.Peer.Type) {
		return nil, fmt.Errorf("zmtp: peer=%q not compatible with %q", conn.Peer.Type, conn.typ)
	}
	return conn, nil
}

// greet exchanges the fixed 64-byte greeting:
//
//	signature  %xFF 8*padding %x7F
//	version    %x03 %x00
//	mechanism  20 bytes, null padded
//	as-server  1 byte
//	filler     31 bytes
func (c *Conn) greet() error {
	var send [greetingSize]byte
	send[0] = 0xFF
	send[9] = 0x7F
	send[10] = 3
	send[11] = 0
	copy(send[12:12+mechanismSize], nullMechanism)
	if c.Server {
		send[32] = 1
	}
	if _, err := c.rw.Write(send[:]); err != nil {
		return fmt.Errorf("could not send greeting: %w", err)
	}

	var recv [greetingSize]byte
	if _, err := io.ReadFull(c.rw, recv[:]); err != nil {
		return fmt.Errorf("could not recv greeting: %w", err)
	}
	if recv[0] != 0xFF || recv[9] != 0x7F {
		return errBadGreeting
	}
	if recv[10] < 3 {
		return fmt.Errorf("%w: version %d.%d", errBadGreeting, recv[10], recv[11])
	}
	mech := string(bytes.TrimRight(recv[12:12+mechanismSize], "\x00"))
	if mech != nullMechanism {
		return fmt.Errorf("%w: %q", errBadSec, mech)
	}
	return nil
}

// ready exchanges READY commands carrying the socket type and identity.
func (c *Conn) ready() error {
	meta := Metadata{
		propSocketType: string(c.typ),
		propIdentity:   c.id,
	}
	if err := c.sendCmd(cmdReady, meta.marshal()); err != nil {
		return fmt.Errorf("could not send READY: %w", err)
	}

	frames, isCmd, err := c.read()
	if err != nil {
		return fmt.Errorf("could not recv READY: %w", err)
	}
	if !isCmd || len(frames) != 1 {
		return errBadCommand
	}
	name, body, err := parseCmd(frames[0])
	if err != nil {
		return err
	}
	if name != cmdReady {
		return fmt.Errorf("%w: expected READY, got %q", errBadCommand, name)
	}
	meta, err = parseMetadata(body)
	if err != nil {
		return err
	}
	c.Peer.Meta = meta
	c.Peer.Type = SocketType(meta[propSocketType])
	c.Peer.Identity = meta[propIdentity]
	return nil
}

// SendMsg writes a multipart message.
func (c *Conn) SendMsg(frames [][]byte) error {
	if c.Closed() {
		return ErrClosed
	}

	var buffers net.Buffers
	for i, frame := range frames {
		var flag byte
		if i < len(frames)-1 {
			flag |= hasMoreBitFlag
		}
		buffers = append(buffers, frameHeader(flag, len(frame)), frame)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := buffers.WriteTo(c.rw); err != nil {
		c.checkIO(err)
		return err
	}
	return nil
}

// RecvMsg reads the next multipart message. Heartbeat commands are answered
// and skipped.
func (c *Conn) RecvMsg() ([][]byte, error) {
	for {
		if c.Closed() {
			return nil, ErrClosed
		}
		frames, isCmd, err := c.read()
		if err != nil {
			return nil, err
		}
		if !isCmd {
			return frames, nil
		}
		if len(frames) != 1 {
			return nil, errBadCommand
		}
		name, body, err := parseCmd(frames[0])
		if err != nil {
			return nil, err
		}
		if name == cmdPing {
			// PING = ttl(2) context(0..16); PONG echoes the context
			var pong []byte
			if len(body) > 2 && len(body) <= 18 {
				pong = body[2:]
			}
			if err := c.sendCmd(cmdPong, pong); err != nil {
				return nil, err
			}
		}
	}
}

func (c *Conn) sendCmd(name string, body []byte) error {
	if len(name) > math.MaxUint8 {
		return errBadCommand
	}
	buf := make([]byte, 0, 1+len(name)+len(body))
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	buf = append(buf, body...)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	bufs := net.Buffers{frameHeader(isCommandBitFlag, len(buf)), buf}
	if _, err := bufs.WriteTo(c.rw); err != nil {
		c.checkIO(err)
		return err
	}
	return nil
}

// read returns the frames of the next message or command.
func (c *Conn) read() ([][]byte, bool, error) {
	var (
		header  [2]byte
		longHdr [8]byte
		frames  [][]byte
		hasMore = true
		isCmd   = false
	)

	for hasMore {
		if _, err := io.ReadFull(c.rw, header[:]); err != nil {
			c.checkIO(err)
			return nil, false, err
		}

		fl := header[0]
		hasMore = fl&hasMoreBitFlag != 0
		isCmd = isCmd || fl&isCommandBitFlag != 0

		size := uint64(header[1])
		if fl&isLongBitFlag != 0 {
			longHdr[0] = header[1]
			if _, err := io.ReadFull(c.rw, longHdr[1:]); err != nil {
				c.checkIO(err)
				return nil, false, err
			}
			size = binary.BigEndian.Uint64(longHdr[:])
		}
		if size > maxFrameSize {
			return nil, false, errOverflow
		}

		body := make([]byte, size)
		if _, err := io.ReadFull(c.rw, body); err != nil {
			c.checkIO(err)
			return nil, false, err
		}
		frames = append(frames, body)
	}
	return frames, isCmd, nil
}

// Close closes the underlying network connection.
func (c *Conn) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return c.rw.Close()
}

// Closed reports whether the connection has been closed or broke.
func (c *Conn) Closed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// RemoteAddr returns the address of the remote end.
func (c *Conn) RemoteAddr() net.Addr {
	return c.rw.RemoteAddr()
}

func (c *Conn) checkIO(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		atomic.StoreInt32(&c.closed, 1)
		return
	}
	var e net.Error
	if errors.As(err, &e) && !e.Timeout() {
		atomic.StoreInt32(&c.closed, 1)
	}
}

func frameHeader(flag byte, size int) []byte {
	if size > math.MaxUint8 {
		hdr := make([]byte, 9)
		hdr[0] = flag | isLongBitFlag
		binary.BigEndian.PutUint64(hdr[1:], uint64(size))
		return hdr
	}
	return []byte{flag, byte(size)}
}

func parseCmd(frame []byte) (string, []byte, error) {
	if len(frame) < 1 {
		return "", nil, errBadCommand
	}
	n := int(frame[0])
	if len(frame) < 1+n {
		return "", nil, errBadCommand
	}
	return string(frame[1 : 1+n]), frame[1+n:], nil
}

// marshal encodes properties as name-size(1) name value-size(4) value.
func (md Metadata) marshal() []byte {
	var buf bytes.Buffer
	for _, k := range []string{propSocketType, propIdentity} {
		v, ok := md[k]
		if !ok {
			continue
		}
		buf.WriteByte(byte(len(k)))
		buf.WriteString(k)
		var sz [4]byte
		binary.BigEndian.PutUint32(sz[:], uint32(len(v)))
		buf.Write(sz[:])
		buf.WriteString(v)
	}
	return buf.Bytes()
}

func parseMetadata(data []byte) (Metadata, error) {
	md := make(Metadata)
	for len(data) > 0 {
		n := int(data[0])
		data = data[1:]
		if len(data) < n+4 {
			return nil, fmt.Errorf("%w: truncated property name", errBadFrame)
		}
		name := string(data[:n])
		data = data[n:]
		sz := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint64(sz) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: truncated property %q", errBadFrame, name)
		}
		md[name] = string(data[:sz])
		data = data[sz:]
	}
	return md, nil
}
