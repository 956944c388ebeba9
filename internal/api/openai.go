package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/sakha/internal/proxy"
)

// DefaultModelName is the model id the OpenAI-compatible endpoints report.
const DefaultModelName = "krishna"

// SessionHeader carries the session id of an OpenAI-compatible reply.
const SessionHeader = "X-Session-ID"

// chatCompletion extends the OpenAI response with the session that answered.
type chatCompletion struct {
	proxy.CompletionResponse
	SessionID string `json:"session_id"`
}

type chunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type completionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

func handleModels(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, proxy.ModelList{
			Object: "list",
			Data:   []proxy.Model{{ID: deps.Model, Object: "model", OwnedBy: "sakha"}},
		})
	}
}

// handleChatCompletions answers the last user message of an OpenAI chat
// request. The request's "user" field selects the session; earlier
// messages are ignored because the session log is authoritative.
func handleChatCompletions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req proxy.CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Messages) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages is required and must not be empty")
			return
		}
		msg := lastUserMessage(req.Messages)
		if strings.TrimSpace(msg) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no user message to answer")
			return
		}

		resp := deps.Agent.ProcessMessage(r.Context(), req.User, msg)
		slog.Debug("chat completion answered", "session_id", resp.SessionID, "stream", req.Stream)

		id := "chatcmpl-" + uuid.New().String()
		created := time.Now().Unix()
		w.Header().Set(SessionHeader, resp.SessionID)

		if req.Stream {
			streamResponse(w, completionChunk{ID: id, Object: "chat.completion.chunk", Created: created, Model: deps.Model}, resp.Response)
			return
		}

		writeJSON(w, chatCompletion{
			CompletionResponse: proxy.CompletionResponse{
				ID:      id,
				Object:  "chat.completion",
				Created: created,
				Model:   deps.Model,
				Choices: []proxy.Choice{{
					Index:        0,
					Message:      proxy.Message{Role: "assistant", Content: resp.Response},
					FinishReason: "stop",
				}},
			},
			SessionID: resp.SessionID,
		})
	}
}

// streamResponse sends the whole reply as a single SSE delta followed by the
// stop chunk and the [DONE] marker.
func streamResponse(w http.ResponseWriter, base completionChunk, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	stop := "stop"
	for _, choice := range []chunkChoice{
		{Delta: chunkDelta{Role: "assistant", Content: text}},
		{FinishReason: &stop},
	} {
		chunk := base
		chunk.Choices = []chunkChoice{choice}
		payload, err := json.Marshal(chunk)
		if err != nil {
			slog.Error("failed to marshal stream chunk", "error", err)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func lastUserMessage(msgs []proxy.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
