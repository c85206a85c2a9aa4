// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Zyre Chat Example - Demonstrates ZRE peer-to-peer chat functionality
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/destiny/zyre"
)

var (
	name     = flag.String("name", "", "Node name (default: auto-generated)")
	group    = flag.String("group", "default", "Chat group to join")
	port     = flag.Int("port", 0, "Mailbox port to use (0 = auto)")
	beacon   = flag.Int("beacon", zyre.DefaultBeaconPort, "UDP beacon port")
	verbose  = flag.Bool("verbose", false, "Verbose output")
	logLevel = flag.String("log-level", "warn", "Log level")
)

func main() {
	flag.Parse()

	fmt.Println("=== Zyre Chat Example ===")
	fmt.Printf("Group: %s\n", *group)

	level, err := zyre.ParseLogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := zyre.NewDevelopmentLogger(level)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	config := zyre.DefaultConfig()
	config.Name = *name
	config.MailboxPort = *port
	config.BeaconPort = *beacon
	config.Logger = logger
	config.Headers["app"] = "zyre-chat"
	config.Headers["version"] = "1.0"

	node, err := zyre.NewNode(config)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}

	fmt.Printf("Starting node: %s (%s)\n", node.Name(), node.Identity())
	if err := node.Start(); err != nil {
		log.Fatalf("Failed to start node: %v", err)
	}
	defer node.Stop()

	if err := node.Join(*group); err != nil {
		log.Fatalf("Failed to join group %s: %v", *group, err)
	}
	fmt.Printf("Joined group: %s\n", *group)
	fmt.Println("Type messages to send, /help for commands, /quit to exit")

	go handleEvents(node, *verbose)
	handleUserInput(node, *group)
}

func handleEvents(node *zyre.Node, verbose bool) {
	for event := range node.Events() {
		ts := event.Time.Format("15:04:05")
		who := event.Name
		if who == "" {
			who = event.Peer[:8]
		}
		switch event.Type {
		case zyre.EventTypeEnter:
			fmt.Printf("\n[%s] %s joined the network\n", ts, event.Peer[:8])
			if verbose {
				fmt.Printf("  Endpoint: %s\n", event.Endpoint)
			}
		case zyre.EventTypeExit:
			fmt.Printf("\n[%s] %s left the network\n", ts, who)
		case zyre.EventTypeJoin:
			fmt.Printf("\n[%s] %s joined group '%s'\n", ts, who, event.Group)
			if verbose {
				if app, ok := node.PeerHeader(event.Peer, "app"); ok {
					fmt.Printf("  App: %s\n", app)
				}
			}
		case zyre.EventTypeLeave:
			fmt.Printf("\n[%s] %s left group '%s'\n", ts, who, event.Group)
		case zyre.EventTypeShout:
			fmt.Printf("\n[%s] <%s@%s> %s\n", ts, who, event.Group, event.Payload)
		case zyre.EventTypeWhisper:
			fmt.Printf("\n[%s] <%s> (whisper) %s\n", ts, who, event.Payload)
		}
		fmt.Print("> ")
	}
}

func handleUserInput(node *zyre.Node, group string) {
	scanner := bufio.NewScanner(os.Stdin)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		node.Stop()
		os.Exit(0)
	}()

	fmt.Print("> ")
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
		case strings.HasPrefix(input, "/"):
			if !handleCommand(node, input) {
				return
			}
		default:
			if err := node.Shout(group, []byte(input)); err != nil {
				fmt.Printf("Failed to send message: %v\n", err)
			}
		}
		fmt.Print("> ")
	}
}

// handleCommand runs a slash command and reports whether to keep going.
func handleCommand(node *zyre.Node, input string) bool {
	parts := strings.Fields(input)

	switch parts[0] {
	case "/help":
		printHelp()

	case "/quit", "/exit":
		fmt.Println("Goodbye!")
		return false

	case "/peers":
		peers := node.Peers()
		fmt.Printf("Known peers (%d):\n", len(peers))
		for _, id := range peers {
			endpoint := node.PeerEndpoint(id)
			status := "connected"
			if endpoint == "" {
				status = "disconnected"
			}
			fmt.Printf("  %s: %s (%s) - %s\n", id[:8], node.PeerName(id), endpoint, status)
		}

	case "/groups":
		fmt.Printf("Own groups: %s\n", strings.Join(node.OwnGroups(), ", "))
		for _, g := range node.PeerGroups() {
			fmt.Printf("  %s: %d peers\n", g, len(node.PeersByGroup(g)))
		}

	case "/join":
		if len(parts) < 2 {
			fmt.Println("Usage: /join <group_name>")
			break
		}
		if err := node.Join(parts[1]); err != nil {
			fmt.Printf("Failed to join group %s: %v\n", parts[1], err)
		}

	case "/leave":
		if len(parts) < 2 {
			fmt.Println("Usage: /leave <group_name>")
			break
		}
		if err := node.Leave(parts[1]); err != nil {
			fmt.Printf("Failed to leave group %s: %v\n", parts[1], err)
		}

	case "/whisper":
		if len(parts) < 3 {
			fmt.Println("Usage: /whisper <peer_prefix> <message>")
			break
		}
		id := findPeer(node, parts[1])
		if id == "" {
			fmt.Printf("No peer matches %s\n", parts[1])
			break
		}
		message := strings.Join(parts[2:], " ")
		if err := node.Whisper(id, []byte(message)); err != nil {
			fmt.Printf("Failed to whisper to %s: %v\n", id[:8], err)
		}

	case "/uuid":
		fmt.Printf("Our UUID: %s\n", node.UUID())

	default:
		fmt.Printf("Unknown command: %s (type /help for help)\n", parts[0])
	}
	return true
}

// findPeer resolves an identity prefix, case-insensitively.
func findPeer(node *zyre.Node, prefix string) string {
	prefix = strings.ToUpper(prefix)
	for _, id := range node.Peers() {
		if strings.HasPrefix(id, prefix) {
			return id
		}
	}
	return ""
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  /help          - Show this help")
	fmt.Println("  /quit          - Exit the chat")
	fmt.Println("  /peers         - List known peers")
	fmt.Println("  /groups        - List groups")
	fmt.Println("  /join <group>  - Join a group")
	fmt.Println("  /leave <group> - Leave a group")
	fmt.Println("  /whisper <id> <msg> - Send private message")
	fmt.Println("  /uuid          - Show our UUID")
	fmt.Println()
	fmt.Println("To send a message to the current group, just type it and press Enter.")
}
