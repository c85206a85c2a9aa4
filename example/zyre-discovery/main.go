// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Zyre Discovery Example - Demonstrates ZRE peer discovery and monitoring
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/destiny/zyre"
)

var (
	name     = flag.String("name", "", "Node name (default: auto-generated)")
	beacon   = flag.Int("beacon", zyre.DefaultBeaconPort, "UDP beacon port")
	interval = flag.Duration("interval", zyre.DefaultInterval, "Beacon interval")
	evasive  = flag.Duration("evasive", zyre.DefaultEvasiveTimeout, "Silence before a peer is pinged")
	expired  = flag.Duration("expired", zyre.DefaultExpiredTimeout, "Silence before a peer is dropped")
	monitor  = flag.Bool("monitor", false, "Monitor mode (show periodic statistics)")
)

type peerInfo struct {
	id        string
	name      string
	endpoint  string
	firstSeen time.Time
	lastSeen  time.Time
	groups    map[string]struct{}
	active    bool
}

func main() {
	flag.Parse()

	fmt.Println("=== Zyre Discovery Example ===")

	config := zyre.DefaultConfig()
	config.Name = *name
	config.BeaconPort = *beacon
	config.Interval = *interval
	config.SetSilentTimeout(*evasive)
	config.ExpiredTimeout = *expired
	config.Headers["app"] = "zyre-discovery"
	config.Headers["purpose"] = "discovery-demo"

	node, err := zyre.NewNode(config)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}
	fmt.Printf("Node: %s (%s)\n", node.Name(), node.Identity())

	if err := node.Start(); err != nil {
		log.Fatalf("Failed to start node: %v", err)
	}
	defer node.Stop()
	fmt.Printf("Mailbox %s, beacon every %v\n", node.Endpoint(), *interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var stats <-chan time.Time
	if *monitor {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		stats = ticker.C
	}

	peers := make(map[string]*peerInfo)
	fmt.Println("Monitoring network for peer discoveries...")
	fmt.Println("Press Ctrl+C to exit")

	for {
		select {
		case event, ok := <-node.Events():
			if !ok {
				return
			}
			handleEvent(node, event, peers)
		case <-stats:
			printStatistics(node, peers)
		case <-sigChan:
			fmt.Println("\nShutting down...")
			printSummary(peers)
			return
		}
	}
}

func handleEvent(node *zyre.Node, event *zyre.Event, peers map[string]*peerInfo) {
	ts := event.Time.Format("15:04:05.000")
	short := event.Peer[:8]

	p, known := peers[event.Peer]
	if known {
		p.lastSeen = event.Time
		if event.Name != "" {
			p.name = event.Name
		}
	}

	switch event.Type {
	case zyre.EventTypeEnter:
		if !known {
			p = &peerInfo{id: event.Peer, firstSeen: event.Time, groups: make(map[string]struct{})}
			peers[event.Peer] = p
		}
		p.endpoint = event.Endpoint
		p.lastSeen = event.Time
		p.active = true
		fmt.Printf("[%s] ENTER: %s at %s\n", ts, short, event.Endpoint)

	case zyre.EventTypeExit:
		if known {
			p.active = false
			fmt.Printf("[%s] EXIT:  %s (%s) after %v\n", ts, p.name, short, event.Time.Sub(p.firstSeen))
		} else {
			fmt.Printf("[%s] EXIT:  %s [unknown peer]\n", ts, short)
		}

	case zyre.EventTypeJoin:
		if known {
			p.groups[event.Group] = struct{}{}
		}
		fmt.Printf("[%s] JOIN:  %s (%s) joined '%s'\n", ts, event.Name, short, event.Group)
		if app, ok := node.PeerHeader(event.Peer, "app"); ok {
			fmt.Printf("         App: %s\n", app)
		}

	case zyre.EventTypeLeave:
		if known {
			delete(p.groups, event.Group)
		}
		fmt.Printf("[%s] LEAVE: %s (%s) left '%s'\n", ts, event.Name, short, event.Group)

	case zyre.EventTypeShout:
		fmt.Printf("[%s] SHOUT: %s (%s) to '%s': %s\n", ts, event.Name, short, event.Group, event.Payload)

	case zyre.EventTypeWhisper:
		fmt.Printf("[%s] WHISPER: %s (%s): %s\n", ts, event.Name, short, event.Payload)
	}
}

func printStatistics(node *zyre.Node, peers map[string]*peerInfo) {
	fmt.Println("\n=== STATISTICS ===")
	active := 0
	for _, p := range peers {
		if p.active {
			active++
		}
	}
	fmt.Printf("Peers: %d active, %d total\n", active, len(peers))

	if groups := node.PeerGroups(); len(groups) > 0 {
		fmt.Println("Groups:")
		for _, g := range groups {
			fmt.Printf("  %s: %d members\n", g, len(node.PeersByGroup(g)))
		}
	}

	ids := node.Peers()
	connected := 0
	for _, id := range ids {
		if node.PeerEndpoint(id) != "" {
			connected++
		}
	}
	fmt.Printf("Our connections: %d/%d peers\n", connected, len(ids))
	fmt.Println("==================")
}

func printSummary(peers map[string]*peerInfo) {
	fmt.Println("\n=== FINAL SUMMARY ===")
	fmt.Printf("Total peers discovered: %d\n", len(peers))

	ids := make([]string, 0, len(peers))
	for id := range peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	active := 0
	for _, id := range ids {
		p := peers[id]
		status := "OFFLINE"
		if p.active {
			status = "ONLINE"
			active++
		}
		fmt.Printf("  %s (%s): %s [%s]\n", p.name, id[:8], status, p.endpoint)
		fmt.Printf("    Seen for: %v\n", p.lastSeen.Sub(p.firstSeen))
		if len(p.groups) > 0 {
			groups := make([]string, 0, len(p.groups))
			for g := range p.groups {
				groups = append(groups, g)
			}
			sort.Strings(groups)
			fmt.Printf("    Groups: %v\n", groups)
		}
	}
	fmt.Printf("\nFinal count: %d active, %d total\n", active, len(peers))
	fmt.Println("=====================")
}
