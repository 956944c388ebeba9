package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/kalambet/sakha/internal/gateway"
	"github.com/kalambet/sakha/internal/intent"
	"github.com/kalambet/sakha/internal/proxy"
)

func TestModels(t *testing.T) {
	h, _ := setupAppHandler(t, "")
	list := decode[proxy.ModelList](t, serve(t, h, authReq(http.MethodGet, "/v1/models", "", ""), http.StatusOK))
	if len(list.Data) != 1 || list.Data[0].ID != DefaultModelName {
		t.Errorf("models = %+v", list)
	}
}

func TestChatCompletions_NonStreaming(t *testing.T) {
	var prompts [][]gateway.Message
	a, _ := newTestAgent(t, func(_ context.Context, msgs []gateway.Message) (string, error) {
		prompts = append(prompts, msgs)
		return "Walk gently.", nil
	})
	h := NewAppHandler(AppDeps{Agent: a})

	body := `{"model":"krishna","messages":[
		{"role":"system","content":"ignored"},
		{"role":"user","content":"earlier question"},
		{"role":"assistant","content":"earlier answer"},
		{"role":"user","content":"I feel restless about my future lately"}
	]}`
	rr := serve(t, h, authReq(http.MethodPost, "/v1/chat/completions", body, ""), http.StatusOK)

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	sessionID := rr.Header().Get(SessionHeader)
	resp := decode[chatCompletion](t, rr)
	if resp.Object != "chat.completion" || len(resp.Choices) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if got := resp.Choices[0].Message; got.Role != "assistant" || got.Content != "Walk gently." {
		t.Errorf("message = %+v", got)
	}
	if resp.SessionID == "" || resp.SessionID != sessionID {
		t.Errorf("session_id = %q, header = %q", resp.SessionID, sessionID)
	}

	// Only the last user message reaches the session log.
	last := prompts[0][len(prompts[0])-1]
	if last.Content != "I feel restless about my future lately" {
		t.Errorf("last prompt turn = %q", last.Content)
	}
	history, _ := a.ConversationHistory(sessionID)
	if len(history) != 2 {
		t.Errorf("history has %d messages, want 2", len(history))
	}
}

func TestChatCompletions_UserSelectsSession(t *testing.T) {
	h, a := setupAppHandler(t, "")
	id := a.ProcessMessage(context.Background(), "", "who are you").SessionID

	body := `{"messages":[{"role":"user","content":"why are you krishna"}],"user":"` + id + `"}`
	rr := serve(t, h, authReq(http.MethodPost, "/v1/chat/completions", body, ""), http.StatusOK)

	resp := decode[chatCompletion](t, rr)
	if resp.SessionID != id || resp.Choices[0].Message.Content != intent.ReplyWhyKrishna {
		t.Errorf("response = %+v", resp)
	}
}

func TestChatCompletions_Streaming(t *testing.T) {
	h, _ := setupAppHandler(t, "")

	body := `{"messages":[{"role":"user","content":"who are you"}],"stream":true}`
	rr := serve(t, h, authReq(http.MethodPost, "/v1/chat/completions", body, ""), http.StatusOK)

	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	got := rr.Body.String()
	if !strings.Contains(got, `"object":"chat.completion.chunk"`) || !strings.Contains(got, "digital embodiment") {
		t.Errorf("stream missing reply chunk: %q", got)
	}
	if !strings.Contains(got, `"finish_reason":"stop"`) || !strings.HasSuffix(got, "data: [DONE]\n\n") {
		t.Errorf("stream not terminated: %q", got)
	}
}

func TestChatCompletions_InvalidRequests(t *testing.T) {
	h, _ := setupAppHandler(t, "")
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"no messages", `{"messages":[]}`},
		{"no user message", `{"messages":[{"role":"system","content":"hi"}]}`},
		{"blank user message", `{"messages":[{"role":"user","content":"  "}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, h, authReq(http.MethodPost, "/v1/chat/completions", tt.body, ""), http.StatusBadRequest)
			if body := decode[map[string]map[string]string](t, rr); body["error"]["type"] != "invalid_request_error" {
				t.Errorf("error = %+v", body)
			}
		})
	}
}

func TestChatCompletions_RequiresToken(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	body := `{"messages":[{"role":"user","content":"who are you"}]}`
	serve(t, h, authReq(http.MethodPost, "/v1/chat/completions", body, ""), http.StatusUnauthorized)
	serve(t, h, authReq(http.MethodPost, "/v1/chat/completions", body, testToken), http.StatusOK)
}
