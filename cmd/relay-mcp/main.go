package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	app "github.com/danphilibin/relay"
	"github.com/danphilibin/relay/internal/client"
	"github.com/danphilibin/relay/internal/mcp"
	"github.com/danphilibin/relay/pkg/log"
)

func main() {
	relayURL := flag.String(
		"relay",
		"http://localhost:8080",
		"Relay server base URL",
	)
	timeout := flag.Duration(
		"timeout",
		mcp.DefaultCallTimeout,
		"Timeout for a single tool call",
	)
	flag.Parse()

	// Stdout carries the protocol, so logs go to stderr
	slog.SetDefault(log.NewForWriter(os.Stderr,
		app.Name+"-mcp", os.Getenv("ENV"), app.Version,
		log.ParseLevel(os.Getenv("LOG_LEVEL")),
	))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	remote := client.NewHTTPClient(*relayURL, *timeout)
	s, err := mcp.NewServer(ctx, remote, *timeout)
	if err != nil {
		slog.Error("Failed to read workflow catalog", log.Error(err))
		os.Exit(1)
	}

	if err := s.MCPServer().AsStdio().Run(); err != nil {
		slog.Error("MCP server error", log.Error(err))
		os.Exit(1)
	}
}
