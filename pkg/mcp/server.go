package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/devpulse-io/devpulse/pkg/cache"
	"github.com/devpulse-io/devpulse/pkg/store"
)

// Server adapts devpulse to the Model Context Protocol: it exposes the
// tracked-user registry and the cached activity snapshots to MCP clients.
type Server struct {
	mcpServer *server.MCPServer
	store     *store.Store
	cache     cache.Cache
}

// NewServer creates a new MCP server instance over the registry and cache.
func NewServer(st *store.Store, c cache.Cache) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"devpulse",
			"1.0.0",
		),
		store: st,
		cache: c,
	}
	s.registerResources()
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// devpulse://users
	s.mcpServer.AddResource(mcp.NewResource(
		"devpulse://users",
		"Tracked Users",
		mcp.WithResourceDescription("Users whose GitHub activity is being polled"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadUsers)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"get_activity",
		mcp.WithDescription("Return the latest activity snapshot for a tracked user."),
		mcp.WithString("username", mcp.Required(), mcp.Description("GitHub username")),
	), s.handleGetActivity)

	s.mcpServer.AddTool(mcp.NewTool(
		"track_user",
		mcp.WithDescription("Start polling a GitHub user's activity."),
		mcp.WithString("username", mcp.Required(), mcp.Description("GitHub username")),
		mcp.WithString("token", mcp.Required(), mcp.Description("Access token used for upstream calls")),
	), s.handleTrackUser)

	s.mcpServer.AddTool(mcp.NewTool(
		"untrack_user",
		mcp.WithDescription("Stop polling a GitHub user's activity."),
		mcp.WithString("username", mcp.Required(), mcp.Description("GitHub username")),
	), s.handleUntrackUser)
}

// --- Handlers ---

func (s *Server) handleReadUsers(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal users: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleGetActivity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	username := mcp.ParseString(request, "username", "")
	if username == "" {
		return mcp.NewToolResultError("username is required"), nil
	}

	// Prefer the live cache tier, fall back to the archive.
	payload, ok, err := s.cache.Get(ctx, cache.ActivityKey(username))
	if err == nil && ok {
		return mcp.NewToolResultText(string(payload)), nil
	}

	snap, err := s.store.LatestSnapshot(ctx, username)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("archive lookup failed: %v", err)), nil
	}
	if snap == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no activity snapshot for %q yet", username)), nil
	}
	return mcp.NewToolResultText(string(snap.Payload)), nil
}

func (s *Server) handleTrackUser(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	username := mcp.ParseString(request, "username", "")
	token := mcp.ParseString(request, "token", "")
	if username == "" || token == "" {
		return mcp.NewToolResultError("username and token are required"), nil
	}

	if err := s.store.AddUser(ctx, store.TrackedUser{Username: username, Token: token}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to track user: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("now tracking %s", username)), nil
}

func (s *Server) handleUntrackUser(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	username := mcp.ParseString(request, "username", "")
	if username == "" {
		return mcp.NewToolResultError("username is required"), nil
	}

	if err := s.store.RemoveUser(ctx, username); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to untrack user: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("stopped tracking %s", username)), nil
}
