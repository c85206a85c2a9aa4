// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/destiny/zyre/internal/testutil"
	"github.com/destiny/zyre/zre"
)

func TestUDPBeaconLoopback(t *testing.T) {
	port, err := testutil.GetUDPBeaconPort()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.BeaconPort = port
	cfg.BeaconAddress = "127.0.0.1"
	m, err := newMetrics(nil, "test")
	require.NoError(t, err)

	b, err := newUDPBeacon(cfg, zaptest.NewLogger(t), m)
	require.NoError(t, err)
	defer b.Close()

	// foreign traffic on the port is dropped
	raw, err := net.Dial("udp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Write([]byte("not a beacon"))
	require.NoError(t, err)

	id := uuid.New()
	frame, err := zre.Beacon{ID: id, Port: 0xc123}.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, b.Send(frame))

	d := testutil.WaitFor(t, b.Discoveries(), 5*time.Second, func(d *Discovery) bool { return d.ID == id })
	assert.Equal(t, uint16(0xc123), d.Port)
	assert.True(t, d.Addr.IsLoopback())

	require.Eventually(t, func() bool {
		return promtest.ToFloat64(m.dropped.WithLabelValues(dropBadBeacon)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Close())
	_, ok := <-b.Discoveries()
	assert.False(t, ok)
}

func TestUDPBeaconSharedPort(t *testing.T) {
	port, err := testutil.GetUDPBeaconPort()
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.BeaconPort = port
	cfg.BeaconAddress = "127.0.0.1"
	m, err := newMetrics(nil, "test")
	require.NoError(t, err)

	a, err := newUDPBeacon(cfg, zaptest.NewLogger(t), m)
	require.NoError(t, err)
	defer a.Close()
	b, err := newUDPBeacon(cfg, zaptest.NewLogger(t), m)
	require.NoError(t, err, "several nodes on one host share the beacon port")
	defer b.Close()
}
