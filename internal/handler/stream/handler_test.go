package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rudeai/innerlog/backend/internal/analysis/pattern"
	model "github.com/rudeai/innerlog/backend/internal/model/session"
	"github.com/rudeai/innerlog/backend/internal/service/conversation"
	sessionstore "github.com/rudeai/innerlog/backend/internal/service/session"
)

func setup(t *testing.T) (*chi.Mux, *conversation.Service) {
	t.Helper()
	engine := pattern.NewEngine(nil, pattern.WithLocation(time.UTC))
	svc := conversation.NewService(sessionstore.NewStore(), conversation.FromEngine(engine), nil, conversation.Config{})

	h := New(svc, nil)
	h.pollInterval = 10 * time.Millisecond

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, svc
}

func TestHistoryReplay(t *testing.T) {
	r, svc := setup(t)
	ctx := context.Background()
	id, _ := svc.StartSession(ctx)
	_, err := svc.ProcessTurn(ctx, id, "I keep checking my phone for messages and getting anxious")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/history", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: entry\n"))
	assert.Contains(t, body, "id: 0\n")
	assert.Contains(t, body, "id: 1\n")
	assert.Contains(t, body, "event: end\n")
	assert.Contains(t, body, `"role":"assistant"`)
}

func TestHistoryResumesAfterLastEventID(t *testing.T) {
	r, svc := setup(t)
	ctx := context.Background()
	id, _ := svc.StartSession(ctx)
	_, _ = svc.ProcessTurn(ctx, id, "")
	_, _ = svc.ProcessTurn(ctx, id, "")

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/history", nil)
	req.Header.Set("Last-Event-ID", "1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	body := resp.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: entry\n"))
	assert.NotContains(t, body, "id: 1\n")
	assert.Contains(t, body, "id: 2\n")
}

func TestHistoryFollowStopsWithRequestContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	r, svc := setup(t)
	id, _ := svc.StartSession(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/history?follow=true", nil).WithContext(ctx)
	resp := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(resp, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("follow stream did not stop after context cancellation")
	}
	assert.Contains(t, resp.Body.String(), ": heartbeat\n")
}

func TestHistoryFollowWithStaleLastEventIDSendsHeartbeats(t *testing.T) {
	defer goleak.VerifyNone(t)

	r, svc := setup(t)
	id, _ := svc.StartSession(context.Background())
	_, err := svc.ProcessTurn(context.Background(), id, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/history?follow=true", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "99")
	resp := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(resp, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("follow stream did not stop after context cancellation")
	}
	body := resp.Body.String()
	assert.NotContains(t, body, "event: entry\n")
	assert.Contains(t, body, ": heartbeat\n")
}

func TestHistoryUnknownSession(t *testing.T) {
	r, _ := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions/missing/history", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/ws/missing", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWebSocketTurns(t *testing.T) {
	defer goleak.VerifyNone(t)

	r, svc := setup(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	id, _ := svc.StartSession(context.Background())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + id

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected outgoingMessage
	require.NoError(t, conn.ReadJSON(&connected))
	assert.Equal(t, "connected", connected.Type)

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "turn", Text: "I keep checking my phone for messages and getting anxious"}))

	var reply struct {
		Type string             `json:"type"`
		Data conversation.Reply `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "reply", reply.Type)
	assert.Equal(t, model.StateConfirmingLog, reply.Data.State)
	assert.Contains(t, reply.Data.Text, "Confirm log accuracy?")

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "dance"}))
	var unsupported outgoingMessage
	require.NoError(t, conn.ReadJSON(&unsupported))
	assert.Equal(t, "error", unsupported.Type)

	for _, frame := range []string{`not json`, `{"type":"turn","text":`, `{"type":5}`} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
		var malformed outgoingMessage
		require.NoError(t, conn.ReadJSON(&malformed), frame)
		assert.Equal(t, "error", malformed.Type, frame)
	}

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)

	info, err := svc.GetSessionInfo(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, info.TurnCount)
}
