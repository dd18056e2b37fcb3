package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/feedbridge/twitter-bridge/internal/mcp"
)

const version = "v1.0.0"

// watch-mcp exposes the bridge control plane to MCP clients over stdio.
// BRIDGE_API_URL points at a running bridge.
func main() {
	godotenv.Load()

	apiURL := os.Getenv("BRIDGE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:9876"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(mcp.NewClient(apiURL), version)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
