// Package mcputils exposes the consultant to MCP clients.
package mcputils

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/liut/showroom/pkg/models/aigc"
	"github.com/liut/showroom/pkg/services/pipeline"
	"github.com/liut/showroom/pkg/services/stores"
)

const (
	ToolNameAsk = "ask_consultant"
)

// AskTool describes the tool
func AskTool() mcp.Tool {
	return mcp.NewTool(ToolNameAsk,
		mcp.WithDescription("Ask the sales consultant a question about the product"),
		mcp.WithString("question", mcp.Required(), mcp.Description("question of the customer")),
		mcp.WithString("conversation_id", mcp.Description("id returned by a previous call, keeps the context")),
	)
}

// NewServer return a MCP server with the ask tool
func NewServer(name, version string, pl *pipeline.Pipeline, ss stores.Sessions) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))
	s.AddTool(AskTool(), AskHandler(pl, ss))
	return s
}

// AskHandler answers a question within a stored conversation
func AskHandler(pl *pipeline.Pipeline, ss stores.Sessions) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cs := ss.Conversation(req.GetString("conversation_id", ""))
		history, err := cs.ListHistory(ctx)
		if err != nil {
			return nil, err
		}
		if history.Pending() {
			// no retry call over MCP, answer the question left by a failed call first
			updated, _, err := pl.Resubmit(ctx, history, nil)
			saveTurns(ctx, cs, history, updated)
			if err != nil {
				logger().Infow("mcp resubmit fail", "csid", cs.GetID(), "err", err)
				return mcp.NewToolResultError(err.Error()), nil
			}
			history = updated
		}
		updated, answer, err := pl.Submit(ctx, history, question)
		saveTurns(ctx, cs, history, updated)
		if err != nil {
			logger().Infow("mcp ask fail", "csid", cs.GetID(), "err", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(answer),
				mcp.NewTextContent("conversation_id: " + cs.GetID()),
			},
		}, nil
	}
}

func saveTurns(ctx context.Context, cs stores.Conversation, history, updated aigc.Turns) {
	if len(updated) > len(history) {
		if err := cs.AddHistory(ctx, updated[len(history):]...); err != nil {
			logger().Infow("save turns fail", "csid", cs.GetID(), "err", err)
		}
	}
}
