package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rudeai/innerlog/backend/internal/analysis/pattern"
	model "github.com/rudeai/innerlog/backend/internal/model/session"
	"github.com/rudeai/innerlog/backend/internal/service/conversation"
	sessionstore "github.com/rudeai/innerlog/backend/internal/service/session"
)

func setupRouter() *chi.Mux {
	engine := pattern.NewEngine(nil, pattern.WithLocation(time.UTC))
	svc := conversation.NewService(sessionstore.NewStore(), conversation.FromEngine(engine), nil, conversation.Config{})

	r := chi.NewRouter()
	New(svc, nil).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	resp := do(t, r, http.MethodPost, "/sessions/", "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("invalid create response %q: %v", resp.Body.String(), err)
	}
	return created.ID
}

func TestTurnFlow(t *testing.T) {
	r := setupRouter()
	id := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/sessions/"+id+"/turns", `{"text":"I keep checking my phone for messages and getting anxious"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var reply conversation.Reply
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.State != model.StateConfirmingLog || !strings.Contains(reply.Text, "Confirm log accuracy?") {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	resp = do(t, r, http.MethodGet, "/sessions/"+id+"/log", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"somaticResponse":["checking","anxiety"]`) {
		t.Fatalf("unexpected log response %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(t, r, http.MethodGet, "/sessions/"+id, "")
	var info model.Info
	if err := json.Unmarshal(resp.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.TurnCount != 1 || info.State != model.StateConfirmingLog {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestTurnValidation(t *testing.T) {
	r := setupRouter()
	id := createSession(t, r)

	if resp := do(t, r, http.MethodPost, "/sessions/"+id+"/turns", `{"message":"hi"}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.Code)
	}
	if resp := do(t, r, http.MethodPost, "/sessions/missing/turns", `{"text":"hi"}`); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.Code)
	}
}

func TestListResetAndDelete(t *testing.T) {
	r := setupRouter()
	id := createSession(t, r)

	resp := do(t, r, http.MethodGet, "/sessions/", "")
	if !strings.Contains(resp.Body.String(), id) {
		t.Fatalf("active list misses session: %s", resp.Body.String())
	}

	do(t, r, http.MethodPost, "/sessions/"+id+"/turns", `{"text":"My landlord raised the rent again today"}`)
	resp = do(t, r, http.MethodPost, "/sessions/"+id+"/reset", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"state":"initial"`) {
		t.Fatalf("unexpected reset response %d: %s", resp.Code, resp.Body.String())
	}

	if resp := do(t, r, http.MethodGet, "/sessions/"+id+"/log", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing log, got %d", resp.Code)
	}

	if resp := do(t, r, http.MethodDelete, "/sessions/"+id, ""); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp := do(t, r, http.MethodGet, "/sessions/"+id, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}
