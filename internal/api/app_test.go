package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/sakha/internal/agent"
	"github.com/kalambet/sakha/internal/gateway"
	"github.com/kalambet/sakha/internal/intent"
	"github.com/kalambet/sakha/internal/profile"
	"github.com/kalambet/sakha/internal/scripture"
	"github.com/kalambet/sakha/internal/storage"
)

const testToken = "test-token-12345"

// fixedRand never includes optional context in default-path replies.
type fixedRand struct{}

func (fixedRand) Float64() float64 { return 0.99 }
func (fixedRand) IntN(int) int     { return 0 }

// newTestAgent wires a real agent over an in-memory store. gen answers
// every generated reply.
func newTestAgent(t *testing.T, gen gateway.Func) (*agent.Agent, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if gen == nil {
		gen = func(context.Context, []gateway.Message) (string, error) {
			return "Be still and know.", nil
		}
	}
	corpus := scripture.NewCorpus([]scripture.Document{{
		Source: "bgita",
		Name:   "Bhagavad Gita",
		Pages:  []string{"The soul is never born and never dies.", "You have a right to your actions, never to their fruits."},
	}}, 1000, 200)

	a := agent.New(agent.Deps{
		Store:     store,
		Memory:    profile.NewManager(store, time.Minute),
		Scripture: scripture.NewRetriever(corpus, nil, 0),
		Generator: gen,
		Rand:      fixedRand{},
	})
	return a, store
}

func setupAppHandler(t *testing.T, token string) (http.Handler, *agent.Agent) {
	t.Helper()
	a, _ := newTestAgent(t, nil)
	return NewAppHandler(AppDeps{Agent: a, Token: token}), a
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(t *testing.T, h http.Handler, req *http.Request, wantStatus int) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != wantStatus {
		t.Fatalf("%s %s: status = %d, want %d; body = %s", req.Method, req.URL.Path, rr.Code, wantStatus, rr.Body.String())
	}
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v; body = %s", err, rr.Body.String())
	}
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]map[string]string](t, rr)
	return body["error"]["message"]
}

func TestHealth(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	rr := serve(t, h, httptest.NewRequest(http.MethodGet, "/health", nil), http.StatusOK)

	if body := decode[map[string]string](t, rr); body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAuth(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := serve(t, h, authReq(http.MethodGet, "/conversations", "", ""), http.StatusUnauthorized)
	if body := decode[map[string]map[string]string](t, rr); body["error"]["type"] != "authentication_error" {
		t.Errorf("error type = %q, want authentication_error", body["error"]["type"])
	}
	serve(t, h, authReq(http.MethodGet, "/conversations", "", "wrong"), http.StatusUnauthorized)
	serve(t, h, authReq(http.MethodGet, "/conversations", "", testToken), http.StatusOK)
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	h, _ := setupAppHandler(t, "")
	serve(t, h, authReq(http.MethodGet, "/conversations", "", ""), http.StatusOK)
}

func TestAsk(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := serve(t, h, authReq(http.MethodPost, "/ask", `{"message":"Who are you?"}`, testToken), http.StatusOK)
	resp := decode[agent.Response](t, rr)
	if resp.Response != intent.ReplyWhoAreYou {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.SessionID == "" || resp.ScriptureID != "0" {
		t.Errorf("session_id = %q, scripture_id = %q", resp.SessionID, resp.ScriptureID)
	}

	body := `{"session_id":"` + resp.SessionID + `","message":"why are you krishna"}`
	next := decode[agent.Response](t, serve(t, h, authReq(http.MethodPost, "/ask", body, testToken), http.StatusOK))
	if next.SessionID != resp.SessionID || next.Response != intent.ReplyWhyKrishna {
		t.Errorf("second reply = %+v", next)
	}
}

func TestAsk_Validation(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing message", `{}`, "message is required"},
		{"empty message", `{"message":""}`, "message is required"},
		{"too long", `{"message":"` + strings.Repeat("a", 4001) + `"}`, "message must be at most 4000 characters"},
		{"bad session id", `{"session_id":"` + strings.Repeat("x", 65) + `","message":"hi"}`, "session_id must be at most 64 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, h, authReq(http.MethodPost, "/ask", tt.body, testToken), http.StatusBadRequest)
			if got := errorMessage(t, rr); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}

	serve(t, h, authReq(http.MethodPost, "/ask", `{not json`, testToken), http.StatusBadRequest)
}

func TestReset(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	rr := serve(t, h, authReq(http.MethodPost, "/reset", "", testToken), http.StatusOK)
	if id := decode[map[string]string](t, rr)["session_id"]; len(id) != 36 {
		t.Errorf("session_id = %q, want a UUID", id)
	}
}

func TestConversations(t *testing.T) {
	h, a := setupAppHandler(t, testToken)
	id := a.ProcessMessage(context.Background(), "", "who are you").SessionID

	list := decode[[]SessionJSON](t, serve(t, h, authReq(http.MethodGet, "/conversations", "", testToken), http.StatusOK))
	if len(list) != 1 || list[0].SessionID != id || list[0].FirstMessage != "who are you" || list[0].MessageCount != 2 {
		t.Fatalf("conversations = %+v", list)
	}

	msgs := decode[[]MessageJSON](t, serve(t, h, authReq(http.MethodGet, "/conversations/"+id+"/messages", "", testToken), http.StatusOK))
	if len(msgs) != 2 || msgs[0].Sender != "user" || msgs[1].Content != intent.ReplyWhoAreYou {
		t.Fatalf("messages = %+v", msgs)
	}

	serve(t, h, authReq(http.MethodDelete, "/conversations/"+id+"/messages/"+msgs[0].ID, "", testToken), http.StatusOK)
	serve(t, h, authReq(http.MethodDelete, "/conversations/"+id+"/messages/"+msgs[0].ID, "", testToken), http.StatusNotFound)

	serve(t, h, authReq(http.MethodDelete, "/conversations/"+id, "", testToken), http.StatusOK)
	list = decode[[]SessionJSON](t, serve(t, h, authReq(http.MethodGet, "/conversations", "", testToken), http.StatusOK))
	if len(list) != 0 {
		t.Errorf("conversations after delete = %+v", list)
	}
}

func TestDeleteAllConversations(t *testing.T) {
	h, a := setupAppHandler(t, testToken)
	ctx := context.Background()
	a.ProcessMessage(ctx, "", "who are you")
	a.ProcessMessage(ctx, "", "who is this")

	serve(t, h, authReq(http.MethodDelete, "/conversations", "", testToken), http.StatusOK)
	if got := a.UserSessions(); len(got) != 0 {
		t.Errorf("UserSessions = %+v, want empty", got)
	}
}

func TestSummarize(t *testing.T) {
	a, store := newTestAgent(t, func(context.Context, []gateway.Message) (string, error) {
		return "They asked who Krishna is.", nil
	})
	h := NewAppHandler(AppDeps{Agent: a})
	id := a.ProcessMessage(context.Background(), "", "who are you").SessionID

	rr := serve(t, h, authReq(http.MethodPost, "/conversations/"+id+"/summary", "", ""), http.StatusOK)
	if got := decode[map[string]string](t, rr)["summary"]; got != "They asked who Krishna is." {
		t.Errorf("summary = %q", got)
	}
	if sum, err := store.LatestSummary(id); err != nil || sum.Text != "They asked who Krishna is." {
		t.Errorf("LatestSummary = %+v, %v", sum, err)
	}

	serve(t, h, authReq(http.MethodPost, "/conversations/unknown/summary", "", ""), http.StatusNotFound)
}

func TestSummarize_GeneratorError(t *testing.T) {
	a, _ := newTestAgent(t, func(context.Context, []gateway.Message) (string, error) {
		return "", errors.New("upstream down")
	})
	h := NewAppHandler(AppDeps{Agent: a})
	id := a.ProcessMessage(context.Background(), "", "who are you").SessionID

	serve(t, h, authReq(http.MethodPost, "/conversations/"+id+"/summary", "", ""), http.StatusBadGateway)
}

func TestScriptures(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	list := decode[[]scripture.SourceInfo](t, serve(t, h, authReq(http.MethodGet, "/scriptures", "", testToken), http.StatusOK))
	if len(list) != 1 || list[0].ID != "bgita" || list[0].Pages != 2 {
		t.Fatalf("scriptures = %+v", list)
	}

	rr := serve(t, h, authReq(http.MethodGet, "/scriptures/bgita/pages/2", "", testToken), http.StatusOK)
	page := decode[map[string]any](t, rr)
	if page["content"] != "You have a right to your actions, never to their fruits." || page["page"] != float64(2) {
		t.Errorf("page = %+v", page)
	}

	serve(t, h, authReq(http.MethodGet, "/scriptures/bgita/pages/3", "", testToken), http.StatusNotFound)
	serve(t, h, authReq(http.MethodGet, "/scriptures/bgita/pages/zero", "", testToken), http.StatusBadRequest)
	serve(t, h, authReq(http.MethodGet, "/scriptures/bgita/pages/0", "", testToken), http.StatusBadRequest)
}

func TestBearerAuth_Header(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := serve(t, h, authReq(http.MethodGet, "/scriptures", "", ""), http.StatusUnauthorized)
	if got := rr.Header().Get("WWW-Authenticate"); got != `Bearer realm="sakha"` {
		t.Errorf("WWW-Authenticate = %q", got)
	}

	req := authReq(http.MethodGet, "/scriptures", "", "")
	req.Header.Set("Authorization", "bearer "+testToken)
	serve(t, h, req, http.StatusOK)

	req = authReq(http.MethodGet, "/scriptures", "", "")
	req.Header.Set("Authorization", "Basic "+testToken)
	serve(t, h, req, http.StatusUnauthorized)
}
