package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Processor is the engine surface inject_message drives.
type Processor interface {
	Process(ctx context.Context, userID, platform, text string, metadata map[string]string)
}

// Server exposes operator tooling over MCP: flow inspection, user trace
// reading and test message injection. It is an operator surface, not a user
// channel, so it talks to the store directly.
type Server struct {
	store     ports.FlowStore
	engine    Processor
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(store ports.FlowStore, engine Processor) *Server {
	s := &Server{
		store:     store,
		engine:    engine,
		mcpServer: server.NewMCPServer("arbor-mcp", strings.TrimSpace(arbor.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List every block of the conversation flow."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		blocks, err := s.store.ListBlocks(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list blocks failed: %v", err)), nil
		}
		return jsonResult(blocks)
	})

	s.mcpServer.AddTool(mcp.NewTool("get_block",
		mcp.WithDescription("Get one block, including its script."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Block id")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireFloat("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		block, err := s.store.FindBlock(ctx, int64(id))
		if errors.Is(err, domain.ErrBlockNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("block %d does not exist", int64(id))), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("find block failed: %v", err)), nil
		}
		return jsonResult(block)
	})

	s.mcpServer.AddTool(mcp.NewTool("user_trace",
		mcp.WithDescription("Read the most recent trace rows for a user, newest first."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Platform user id")),
		mcp.WithString("platform", mcp.Required(), mcp.Description("Platform name")),
		mcp.WithNumber("limit", mcp.Description("Max rows (default 50)")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := request.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		platform, err := request.RequireString("platform")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		limit := request.GetInt("limit", 50)

		traces, err := s.store.ListTraces(ctx, userID, platform, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list traces failed: %v", err)), nil
		}
		return jsonResult(traces)
	})

	s.mcpServer.AddTool(mcp.NewTool("inject_message",
		mcp.WithDescription("Inject a message as if the user had sent it, running a full turn."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Platform user id")),
		mcp.WithString("platform", mcp.Required(), mcp.Description("Platform name")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := request.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		platform, err := request.RequireString("platform")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := request.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		s.engine.Process(ctx, userID, platform, text, nil)
		return mcp.NewToolResultText("turn processed"), nil
	})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("arbor://flow", "Current Flow Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		blocks, err := s.store.ListBlocks(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blocks: %w", err)
		}
		jsonBytes, _ := json.Marshal(blocks)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "arbor://flow",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
