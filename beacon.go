// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/destiny/zyre/zre"
)

// Discovery is a valid beacon received from another node.
type Discovery struct {
	ID   uuid.UUID // Sender identity
	Port uint16    // Sender mailbox port, 0 when it is leaving
	Addr net.IP    // Source address of the datagram
}

// beaconTransport broadcasts and receives beacon frames.
type beaconTransport interface {
	Send(frame []byte) error
	Discoveries() <-chan *Discovery
	Close() error
}

// udpBeacon is the UDP broadcast beacon transport. Several nodes on one
// host share the port through SO_REUSEADDR/SO_REUSEPORT.
type udpBeacon struct {
	conn        *net.UDPConn
	dest        *net.UDPAddr
	discoveries chan *Discovery
	log         *zap.Logger
	metrics     *metrics

	wg   sync.WaitGroup
	once sync.Once
}

func newUDPBeacon(cfg *Config, log *zap.Logger, m *metrics) (*udpBeacon, error) {
	dest, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.BeaconAddress, strconv.Itoa(cfg.BeaconPort)))
	if err != nil {
		return nil, fmt.Errorf("zyre: invalid beacon address %q: %w", cfg.BeaconAddress, err)
	}

	lc := net.ListenConfig{Control: beaconControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort("", strconv.Itoa(cfg.BeaconPort)))
	if err != nil {
		return nil, fmt.Errorf("zyre: could not bind beacon port %d: %w", cfg.BeaconPort, err)
	}

	b := &udpBeacon{
		conn:        pc.(*net.UDPConn),
		dest:        dest,
		discoveries: make(chan *Discovery, 64),
		log:         log.With(zap.String("component", "beacon")),
		metrics:     m,
	}
	b.wg.Add(1)
	go b.listen()
	return b, nil
}

func (b *udpBeacon) Send(frame []byte) error {
	_, err := b.conn.WriteToUDP(frame, b.dest)
	return err
}

func (b *udpBeacon) Discoveries() <-chan *Discovery {
	return b.discoveries
}

func (b *udpBeacon) listen() {
	defer b.wg.Done()
	defer close(b.discoveries)

	buf := make([]byte, 255)
	for {
		n, from, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			b.log.Debug("beacon read failed", zap.Error(err))
			continue
		}
		beacon, err := zre.ParseBeacon(buf[:n])
		if err != nil {
			b.metrics.dropped.WithLabelValues(dropBadBeacon).Inc()
			continue
		}
		// lagging engine: the next tick repeats it
		select {
		case b.discoveries <- &Discovery{ID: beacon.ID, Port: beacon.Port, Addr: from.IP}:
		default:
		}
	}
}

func (b *udpBeacon) Close() error {
	var err error
	b.once.Do(func() {
		err = b.conn.Close()
		b.wg.Wait()
	})
	return err
}
