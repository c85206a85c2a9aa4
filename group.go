// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"sort"

	"github.com/destiny/zyre/zre"
)

// group is a named set of peers, keyed by identity.
type group struct {
	name    string
	members map[string]*peer
}

func newGroup(name string) *group {
	return &group{
		name:    name,
		members: make(map[string]*peer),
	}
}

// join adds p and reports whether it was not already a member.
func (g *group) join(p *peer) bool {
	if _, ok := g.members[p.identity]; ok {
		g.members[p.identity] = p
		return false
	}
	g.members[p.identity] = p
	return true
}

// leave removes p and reports whether it was a member.
func (g *group) leave(p *peer) bool {
	if _, ok := g.members[p.identity]; !ok {
		return false
	}
	delete(g.members, p.identity)
	return true
}

// send delivers msg to every member independently, in identity order.
// It returns the number of members the message was queued for.
func (g *group) send(msg zre.Message) int {
	n := 0
	for _, id := range g.memberIDs() {
		if g.members[id].send(msg) {
			n++
		}
	}
	return n
}

func (g *group) memberIDs() []string {
	ids := make([]string, 0, len(g.members))
	for id := range g.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *group) empty() bool {
	return len(g.members) == 0
}
