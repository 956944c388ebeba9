package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kalambet/sakha/internal/agent"
	"github.com/kalambet/sakha/internal/scripture"
	"github.com/kalambet/sakha/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Agent is the conversational core served by the HTTP and MCP layers.
// Implemented by agent.Agent.
type Agent interface {
	ProcessMessage(ctx context.Context, sessionID, text string) agent.Response
	ConversationHistory(sessionID string) ([]storage.Message, error)
	DeleteConversation(sessionID string) bool
	DeleteAllConversations() bool
	DeleteMessage(sessionID, messageID string) bool
	UserSessions() []storage.SessionInfo
	ResetSession() (string, error)
	SummarizeSession(ctx context.Context, sessionID string) (string, error)
	Scriptures() []scripture.SourceInfo
	ScripturePage(source string, page int) (string, bool)
	SearchScripture(ctx context.Context, query string) (scripture.Result, bool)
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=64"`
	Message   string `json:"message" validate:"required,max=4000"`
}

// SessionJSON describes one conversation in listings.
type SessionJSON struct {
	SessionID    string `json:"session_id"`
	Timestamp    string `json:"timestamp"`
	LastActive   string `json:"last_active"`
	FirstMessage string `json:"first_message"`
	MessageCount int    `json:"message_count"`
}

// MessageJSON is one stored turn.
type MessageJSON struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type AppDeps struct {
	Agent Agent
	// Token enables bearer auth on every route but /health when set.
	Token string
	// Model is the name reported by the OpenAI-compatible endpoints.
	Model string
}

// NewAppHandler returns the HTTP API.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Model == "" {
		deps.Model = DefaultModelName
	}
	validate := newValidator()

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/reset", handleReset(deps))
		r.Post("/ask", handleAsk(deps, validate))

		r.Get("/conversations", handleListConversations(deps))
		r.Delete("/conversations", handleDeleteAllConversations(deps))
		r.Get("/conversations/{id}/messages", handleConversationHistory(deps))
		r.Delete("/conversations/{id}", handleDeleteConversation(deps))
		r.Delete("/conversations/{id}/messages/{messageID}", handleDeleteMessage(deps))
		r.Post("/conversations/{id}/summary", handleSummarize(deps))

		r.Get("/scriptures", handleListScriptures(deps))
		r.Get("/scriptures/{source}/pages/{page}", handleScripturePage(deps))

		r.Get("/v1/models", handleModels(deps))
		r.Post("/v1/chat/completions", handleChatCompletions(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReset(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := deps.Agent.ResetSession()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to reset session: %v", err)
			return
		}
		writeJSON(w, map[string]string{"session_id": id})
	}
}

func handleAsk(deps AppDeps, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := validate.Struct(req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", validationMessage(err))
			return
		}

		writeJSON(w, deps.Agent.ProcessMessage(r.Context(), req.SessionID, req.Message))
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage names the first failing field and rule.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	}
	return fe.Field() + " failed " + fe.Tag() + " validation"
}

func handleListConversations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		writeJSON(w, out)
	}
}

func handleConversationHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		msgs, err := deps.Agent.ConversationHistory(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get conversation: %v", err)
			return
		}
		writeJSON(w, toMessageJSON(msgs))
	}
}

func toMessageJSON(msgs []storage.Message) []MessageJSON {
	out := make([]MessageJSON, len(msgs))
	for i, m := range msgs {
		out[i] = MessageJSON{
			ID:        m.ID,
			Sender:    string(m.Sender),
			Content:   m.Text,
			Timestamp: m.CreatedAt.Format(time.RFC3339Nano),
		}
	}
	return out
}

func handleDeleteConversation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !deps.Agent.DeleteConversation(id) {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete conversation %s", id)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleDeleteAllConversations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.Agent.DeleteAllConversations() {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete conversations")
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleDeleteMessage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		messageID := chi.URLParam(r, "messageID")
		if !deps.Agent.DeleteMessage(id, messageID) {
			httpError(w, http.StatusNotFound, "not_found", "message not found")
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleSummarize(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		summary, err := deps.Agent.SummarizeSession(r.Context(), id)
		if errors.Is(err, agent.ErrEmptyConversation) {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "summarization failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"session_id": id, "summary": summary})
	}
}

func handleListScriptures(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Agent.Scriptures())
	}
}

func handleScripturePage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := chi.URLParam(r, "source")
		page, err := strconv.Atoi(chi.URLParam(r, "page"))
		if err != nil || page < 1 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "page must be a positive integer")
			return
		}

		text, ok := deps.Agent.ScripturePage(source, page)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "page %d of %s not found", page, source)
			return
		}
		writeJSON(w, map[string]any{"source": source, "page": page, "content": text})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
