package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server exposes the bridge control plane as MCP tools, relaying every call
// to the bridge HTTP API.
type Server struct {
	server *sdkmcp.Server
	client *Client
}

// NewServer creates a new MCP server backed by client
func NewServer(client *Client, version string) *Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "twitter-bridge-watches",
		Version: version,
	}, nil)

	s := &Server{server: server, client: client}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "register_account",
		Description: "Register an account and its access token with the bridge. Registered accounts have their followers watched.",
	}, s.handleRegisterAccount)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "watch_channel",
		Description: "Monitor a public channel (screen name) on behalf of an account. New posts are forwarded as channel updates.",
	}, s.handleWatchChannel)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "watch_timeline",
		Description: "Forward every new item of an account's home timeline.",
	}, s.handleWatchTimeline)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "watch_followers",
		Description: "Report follows and unfollows of an account.",
	}, s.handleWatchFollowers)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "list_watches",
		Description: "List the channel monitors, timeline watches and follower watches registered on the bridge.",
	}, s.handleListWatches)
}

// ResultOutput reports whether a registration succeeded
type ResultOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func result(err error) ResultOutput {
	if err != nil {
		return ResultOutput{Success: false, Error: err.Error()}
	}
	return ResultOutput{Success: true}
}

// RegisterAccountInput is the input for register_account
type RegisterAccountInput struct {
	Account string `json:"account" jsonschema:"the account id"`
	Token   string `json:"token" jsonschema:"the access token the bridge polls with"`
}

func (s *Server) handleRegisterAccount(ctx context.Context, req *sdkmcp.CallToolRequest, input RegisterAccountInput) (*sdkmcp.CallToolResult, ResultOutput, error) {
	return nil, result(s.client.RegisterAccount(input.Account, input.Token)), nil
}

// WatchChannelInput is the input for watch_channel
type WatchChannelInput struct {
	Account string `json:"account" jsonschema:"the account whose credential is used"`
	Channel string `json:"channel" jsonschema:"the screen name to monitor, with or without a leading @"`
}

func (s *Server) handleWatchChannel(ctx context.Context, req *sdkmcp.CallToolRequest, input WatchChannelInput) (*sdkmcp.CallToolResult, ResultOutput, error) {
	return nil, result(s.client.WatchChannel(input.Account, input.Channel)), nil
}

// AccountInput names the account a watch belongs to
type AccountInput struct {
	Account string `json:"account" jsonschema:"the account id"`
}

func (s *Server) handleWatchTimeline(ctx context.Context, req *sdkmcp.CallToolRequest, input AccountInput) (*sdkmcp.CallToolResult, ResultOutput, error) {
	return nil, result(s.client.WatchTimeline(input.Account)), nil
}

func (s *Server) handleWatchFollowers(ctx context.Context, req *sdkmcp.CallToolRequest, input AccountInput) (*sdkmcp.CallToolResult, ResultOutput, error) {
	return nil, result(s.client.WatchFollowers(input.Account)), nil
}

// ListWatchesInput is empty - no input needed
type ListWatchesInput struct{}

// ListWatchesOutput contains the registered watches
type ListWatchesOutput struct {
	Watches *Watches `json:"watches,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func (s *Server) handleListWatches(ctx context.Context, req *sdkmcp.CallToolRequest, input ListWatchesInput) (*sdkmcp.CallToolResult, ListWatchesOutput, error) {
	watches, err := s.client.ListWatches()
	if err != nil {
		return nil, ListWatchesOutput{Error: err.Error()}, nil
	}
	return nil, ListWatchesOutput{Watches: watches}, nil
}
