// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zyre implements a ZRE node: serverless group messaging for local
// networks. Nodes find each other with UDP beacons, greet each other with
// HELLO over a ZMTP mailbox, and then exchange direct (WHISPER) and group
// (SHOUT) messages. Group membership is propagated with JOIN and LEAVE.
//
// A Node runs a single loop goroutine that owns all peer and group state.
// Applications drive it with methods such as Join and Shout and observe the
// network through the Events channel.
//
//	node, err := zyre.NewNode(nil)
//	if err != nil {
//		return err
//	}
//	if err := node.Start(); err != nil {
//		return err
//	}
//	defer node.Stop()
//	node.Join("CHAT")
//	for ev := range node.Events() {
//		fmt.Println(ev.Type, ev.Peer)
//	}
//
// For the protocol see https://rfc.zeromq.org/spec/36/.
package zyre
