// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

// command is a request from the application to the node loop. The set is
// closed; handleCommand switches over every implementation.
type command interface {
	isCommand()
}

type joinCmd struct{ group string }

type leaveCmd struct{ group string }

type whisperCmd struct {
	peer    string
	payload []byte
}

type shoutCmd struct {
	group   string
	payload []byte
}

type setHeaderCmd struct{ key, value string }

// queryCmd runs fn on the loop and closes done afterwards. Queries read
// registries without locking since they execute on the loop goroutine.
type queryCmd struct {
	fn   func()
	done chan struct{}
}

type terminateCmd struct{}

func (joinCmd) isCommand()      {}
func (leaveCmd) isCommand()     {}
func (whisperCmd) isCommand()   {}
func (shoutCmd) isCommand()     {}
func (setHeaderCmd) isCommand() {}
func (queryCmd) isCommand()     {}
func (terminateCmd) isCommand() {}
