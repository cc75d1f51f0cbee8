package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rudeai/innerlog/backend/internal/service/conversation"
	"github.com/rudeai/innerlog/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
	maxFrameSize = 64 << 10
)

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	info, err := h.conversations.GetSessionInfo(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, conversation.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	logger := h.logger.With(zap.String("session_id", sessionID))
	logger.Info("websocket connected")

	out := make(chan outgoingMessage, 8)
	out <- newMessage("connected", sessionID, info)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return h.readPump(ctx, conn, sessionID, out)
	})
	g.Go(func() error {
		return writePump(ctx, conn, out)
	})

	if err := g.Wait(); err != nil && !isNormalClose(err) {
		logger.Warn("websocket closed with error", zap.Error(err))
		return
	}
	logger.Info("websocket disconnected")
}

// readPump turns inbound frames into turns. It owns out and closes it on exit.
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, sessionID string, out chan<- outgoingMessage) error {
	defer close(out)

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			if !send(ctx, out, newError(sessionID, "invalid message")) {
				return ctx.Err()
			}
			continue
		}

		reply := h.handleMessage(ctx, sessionID, msg)
		if !send(ctx, out, reply) {
			return ctx.Err()
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, sessionID string, msg inboundMessage) outgoingMessage {
	switch strings.ToLower(msg.Type) {
	case "turn":
		reply, err := h.conversations.ProcessTurn(ctx, sessionID, msg.Text)
		if err != nil {
			return newError(sessionID, err.Error())
		}
		return newMessage("reply", sessionID, reply)
	case "info":
		info, err := h.conversations.GetSessionInfo(ctx, sessionID)
		if err != nil {
			return newError(sessionID, err.Error())
		}
		return newMessage("info", sessionID, info)
	case "reset":
		if err := h.conversations.ResetSession(ctx, sessionID); err != nil {
			return newError(sessionID, err.Error())
		}
		info, err := h.conversations.GetSessionInfo(ctx, sessionID)
		if err != nil {
			return newError(sessionID, err.Error())
		}
		return newMessage("info", sessionID, info)
	default:
		return newError(sessionID, "unsupported message type: "+msg.Type)
	}
}

// writePump is the only writer on conn. It closes conn on exit, which also
// unblocks readPump.
func writePump(ctx context.Context, conn *websocket.Conn, out <-chan outgoingMessage) error {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
	}
}

func send(ctx context.Context, out chan<- outgoingMessage, msg outgoingMessage) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func newMessage(kind, sessionID string, data interface{}) outgoingMessage {
	return outgoingMessage{Type: kind, SessionID: sessionID, Data: data, Timestamp: time.Now().UnixMilli()}
}

func newError(sessionID, message string) outgoingMessage {
	return newMessage("error", sessionID, map[string]string{"message": message})
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, context.Canceled)
}
