package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/sakha/internal/agent"
	"github.com/kalambet/sakha/internal/gateway"
	"github.com/kalambet/sakha/internal/intent"
	"github.com/kalambet/sakha/internal/scripture"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *agent.Agent) {
	t.Helper()
	a, _ := newTestAgent(t, func(context.Context, []gateway.Message) (string, error) {
		return "A short summary.", nil
	})
	return MCPDeps{Agent: a, Version: "test"}, a
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("%s returned error: %v", name, err)
	}
	return result
}

// --- tests ---

func TestNewMCPServer_RegistersTools(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	s := NewMCPServer(deps)

	msg := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	for _, name := range []string{"ask_krishna", "list_sessions", "get_conversation", "delete_conversation", "search_scripture", "summarize_session"} {
		if !strings.Contains(string(b), `"name":"`+name+`"`) {
			t.Errorf("tool %q not listed in %s", name, b)
		}
	}
}

func TestMCPTool_Ask(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	h := mcpAsk(deps)

	result := callTool(t, h, "ask_krishna", map[string]interface{}{"message": "Who are you?"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var resp agent.Response
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if resp.Response != intent.ReplyWhoAreYou || resp.SessionID == "" {
		t.Errorf("reply = %+v", resp)
	}

	result = callTool(t, h, "ask_krishna", map[string]interface{}{"message": "why krishna", "session_id": resp.SessionID})
	var next agent.Response
	if err := json.Unmarshal([]byte(toolText(t, result)), &next); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if next.SessionID != resp.SessionID {
		t.Errorf("session_id = %q, want %q", next.SessionID, resp.SessionID)
	}
}

func TestMCPTool_AskMissingMessage(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result := callTool(t, mcpAsk(deps), "ask_krishna", map[string]interface{}{})
	if !result.IsError {
		t.Error("expected an error result")
	}
}

func TestMCPTool_Conversations(t *testing.T) {
	deps, a := newTestMCPDeps(t)
	id := a.ProcessMessage(context.Background(), "", "who are you").SessionID

	var sessions []SessionJSON
	text := toolText(t, callTool(t, mcpListSessions(deps), "list_sessions", nil))
	if err := json.Unmarshal([]byte(text), &sessions); err != nil {
		t.Fatalf("decoding sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != id {
		t.Fatalf("sessions = %+v", sessions)
	}

	var msgs []MessageJSON
	text = toolText(t, callTool(t, mcpGetConversation(deps), "get_conversation", map[string]interface{}{"session_id": id}))
	if err := json.Unmarshal([]byte(text), &msgs); err != nil {
		t.Fatalf("decoding messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "who are you" {
		t.Fatalf("messages = %+v", msgs)
	}

	result := callTool(t, mcpDeleteConversation(deps), "delete_conversation", map[string]interface{}{"session_id": id})
	if result.IsError || !strings.Contains(toolText(t, result), id) {
		t.Errorf("delete result = %q", toolText(t, result))
	}
	if got := a.UserSessions(); len(got) != 0 {
		t.Errorf("sessions after delete = %+v", got)
	}
}

func TestMCPTool_RequiredSessionID(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"get_conversation":    mcpGetConversation(deps),
		"delete_conversation": mcpDeleteConversation(deps),
		"summarize_session":   mcpSummarizeSession(deps),
	}
	for name, h := range handlers {
		if result := callTool(t, h, name, map[string]interface{}{}); !result.IsError {
			t.Errorf("%s without session_id: expected an error result", name)
		}
	}
}

func TestMCPTool_SearchScripture(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	h := mcpSearchScripture(deps)

	result := callTool(t, h, "search_scripture", map[string]interface{}{"query": "right to your actions"})
	var res scripture.Result
	if err := json.Unmarshal([]byte(toolText(t, result)), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if res.Source != "bgita" || res.Page != 2 {
		t.Errorf("result = %+v", res)
	}

	result = callTool(t, h, "search_scripture", map[string]interface{}{"query": "zzzz qqqq"})
	if got := toolText(t, result); got != "No matching passage found." {
		t.Errorf("miss = %q", got)
	}
}

func TestMCPTool_Summarize(t *testing.T) {
	deps, a := newTestMCPDeps(t)
	id := a.ProcessMessage(context.Background(), "", "who are you").SessionID
	h := mcpSummarizeSession(deps)

	result := callTool(t, h, "summarize_session", map[string]interface{}{"session_id": id})
	if got := toolText(t, result); result.IsError || got != "A short summary." {
		t.Errorf("summary = %q (error=%v)", got, result.IsError)
	}

	result = callTool(t, h, "summarize_session", map[string]interface{}{"session_id": "missing"})
	if !result.IsError {
		t.Error("expected an error for an empty conversation")
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps, a := newTestMCPDeps(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		a.ProcessMessage(ctx, "", "who are you")
	}
	long := strings.Repeat("ॐ", 250) + " who are you"
	a.ProcessMessage(ctx, "", long)

	contents, err := mcpResourceRecent(deps)(ctx, makeReadResourceRequest("sessions://recent"))
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "sessions://recent" || tc.MIMEType != "application/json" {
		t.Errorf("contents = %+v", tc)
	}

	var sessions []struct {
		SessionID    string `json:"session_id"`
		FirstMessage string `json:"first_message"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &sessions); err != nil {
		t.Fatalf("decoding sessions: %v", err)
	}
	if len(sessions) != recentSessionsLimit {
		t.Fatalf("got %d sessions, want %d", len(sessions), recentSessionsLimit)
	}
	if want := strings.Repeat("ॐ", 200) + "..."; sessions[0].FirstMessage != want {
		t.Errorf("first_message not truncated: %q", sessions[0].FirstMessage)
	}
}
