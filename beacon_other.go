// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package zyre

import "syscall"

// beaconControl is a no-op where golang.org/x/sys/unix is unavailable; only
// one node per host can then own the beacon port.
func beaconControl(network, address string, c syscall.RawConn) error {
	return nil
}
