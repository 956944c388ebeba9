package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/sakha/internal/agent"
)

const recentSessionsLimit = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Agent   Agent
	Version string
}

// NewMCPServer creates an MCP server with the sakha tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := server.NewMCPServer(
		"sakha",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("sakha: talk with Krishna, browse past conversations and search the scriptures."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("ask_krishna",
			mcp.WithDescription("Send a message to Krishna and get a reply. Omit session_id to start a new conversation."),
			mcp.WithString("message", mcp.Description("What to say"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Conversation to continue")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("list_sessions",
			mcp.WithDescription("List conversations, newest first."),
		),
		mcpListSessions(deps),
	)

	s.AddTool(
		mcp.NewTool("get_conversation",
			mcp.WithDescription("Return every message of a conversation, oldest first."),
			mcp.WithString("session_id", mcp.Description("Conversation id"), mcp.Required()),
		),
		mcpGetConversation(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_conversation",
			mcp.WithDescription("Permanently delete a conversation and everything remembered about it."),
			mcp.WithString("session_id", mcp.Description("Conversation id"), mcp.Required()),
		),
		mcpDeleteConversation(deps),
	)

	s.AddTool(
		mcp.NewTool("search_scripture",
			mcp.WithDescription("Find the scripture passage that best matches a query."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		mcpSearchScripture(deps),
	)

	s.AddTool(
		mcp.NewTool("summarize_session",
			mcp.WithDescription("Summarize a conversation and store the summary."),
			mcp.WithString("session_id", mcp.Description("Conversation id"), mcp.Required()),
		),
		mcpSummarizeSession(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"sessions://recent",
			"Recent Conversations",
			mcp.WithResourceDescription("Last 10 conversations with their opening message"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil || message == "" {
			return mcpError("message is required"), nil
		}
		resp := deps.Agent.ProcessMessage(ctx, req.GetString("session_id", ""), message)
		return mcpJSON(resp)
	}
}

func mcpListSessions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessions := deps.Agent.UserSessions()
		out := make([]SessionJSON, len(sessions))
		for i, s := range sessions {
			out[i] = SessionJSON{
				SessionID:    s.ID,
				Timestamp:    s.StartedAt.Format(time.RFC3339),
				LastActive:   s.LastActive.Format(time.RFC3339),
				FirstMessage: s.FirstMessage,
				MessageCount: s.MessageCount,
			}
		}
		return mcpJSON(out)
	}
}

func mcpGetConversation(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		msgs, err := deps.Agent.ConversationHistory(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get conversation: %v", err)), nil
		}
		return mcpJSON(toMessageJSON(msgs))
	}
}

func mcpDeleteConversation(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		if !deps.Agent.DeleteConversation(id) {
			return mcpError(fmt.Sprintf("failed to delete conversation %s", id)), nil
		}
		return mcpText(fmt.Sprintf("Deleted conversation %s", id)), nil
	}
}

func mcpSearchScripture(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		res, ok := deps.Agent.SearchScripture(ctx, query)
		if !ok {
			return mcpText("No matching passage found."), nil
		}
		return mcpJSON(res)
	}
}

func mcpSummarizeSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		summary, err := deps.Agent.SummarizeSession(ctx, id)
		if errors.Is(err, agent.ErrEmptyConversation) {
			return mcpError(fmt.Sprintf("conversation %s has no messages", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("summarization failed: %v", err)), nil
		}
		return mcpText(summary), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sessions := deps.Agent.UserSessions()
		if len(sessions) > recentSessionsLimit {
			sessions = sessions[:recentSessionsLimit]
		}

		type sessionSummary struct {
			SessionID    string `json:"session_id"`
			LastActive   string `json:"last_active"`
			FirstMessage string `json:"first_message"`
		}

		summaries := make([]sessionSummary, len(sessions))
		for i, s := range sessions {
			first := s.FirstMessage
			if utf8.RuneCountInString(first) > 200 {
				runes := []rune(first)
				first = string(runes[:200]) + "..."
			}
			summaries[i] = sessionSummary{
				SessionID:    s.ID,
				LastActive:   s.LastActive.Format(time.RFC3339),
				FirstMessage: first,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sessions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
