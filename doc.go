/*
Package arbor is a scripted conversation engine for chat bots.

A bot is a graph of numbered blocks. Each block carries a small Lua script
that runs when the user's session sits on it: the script reads the inbound
text, reads and writes per-user params, queues outbound messages, and moves
the session with go_to. The engine manages users, sessions, tracing and
delivery, while the host supplies the two outer pieces: a store for
persistence and a connector for the messaging platform. This Hexagonal
Architecture lets the same flow run against a terminal, an HTTP gateway, or
anything else that can implement two small interfaces.

# Key Features

  - Capability-scoped scripting: block scripts see six primitives and
    nothing else, no filesystem, network or globals.
  - One session per user and platform, serialized per session key.
  - Append-only trace of every inbound message and outbound chunk.
  - Outbound chunking at 4000 characters with button-safe splitting.
  - Loadable Lua plugins (modules) with host helpers for HTTP and JSON.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/arbor"
		"github.com/aretw0/arbor/pkg/adapters/console"
		"github.com/aretw0/arbor/pkg/adapters/memory"
		"github.com/aretw0/arbor/pkg/domain"
	)

	func main() {
		store := memory.NewStore()
		_ = store.SaveBlock(context.Background(), &domain.Block{
			ID:      1,
			Name:    "welcome",
			Script:  `send_message("hello, " .. (input_text or "stranger"))`,
			IsStart: true,
		})

		bot, err := arbor.New(store, console.NewConnector(nil))
		if err != nil {
			log.Fatal(err)
		}
		bot.Process(context.Background(), "local", "console", "hi", nil)
	}

Flows are usually authored outside the binary: as a YAML bundle
(pkg/flowfile) or a directory of markdown files (pkg/adapters/loamflow),
imported into the store with `arbor import`.
*/
package arbor
