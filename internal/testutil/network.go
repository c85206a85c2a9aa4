// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testutil provides testing utilities for zyre nodes and sockets.
package testutil

import (
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"
)

var portCounter int64 = 20000

// GetAvailablePort returns a TCP port that was free when checked.
func GetAvailablePort() (int, error) {
	return nextPort(isPortAvailable)
}

// GetUDPBeaconPort returns a UDP port that was free when checked.
func GetUDPBeaconPort() (int, error) {
	return nextPort(isUDPPortAvailable)
}

func nextPort(free func(int) bool) (int, error) {
	basePort := atomic.AddInt64(&portCounter, 100)
	for i := 0; i < 100; i++ {
		port := int(basePort) + i
		if port > 0xbfff {
			// stay below the dynamic mailbox range
			port = 20000 + port%(0xbfff-20000)
		}
		if free(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available ports found near %d", basePort)
}

func isPortAvailable(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

func isUDPPortAvailable(port int) bool {
	conn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// WaitForConnection waits until endpoint accepts TCP connections.
func WaitForConnection(endpoint string, timeout time.Duration) error {
	addr := strings.TrimPrefix(endpoint, "tcp://")
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("connection timeout for endpoint %s", endpoint)
}
