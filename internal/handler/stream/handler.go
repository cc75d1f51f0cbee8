package stream

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	model "github.com/rudeai/innerlog/backend/internal/model/session"
	"github.com/rudeai/innerlog/backend/internal/service/conversation"
	"github.com/rudeai/innerlog/backend/pkg/utils"
)

const defaultPollInterval = time.Second

// Handler streams session transcripts over Server-Sent Events and accepts
// turns over a websocket.
type Handler struct {
	conversations *conversation.Service
	logger        *zap.Logger
	pollInterval  time.Duration
	upgrader      websocket.Upgrader
}

// New creates a stream handler.
func New(conversations *conversation.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		conversations: conversations,
		logger:        logger.Named("http.stream"),
		pollInterval:  defaultPollInterval,
		upgrader:      newUpgrader(),
	}
}

// RegisterRoutes registers streaming routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/history", h.handleHistory)
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// EntryEvent is one history entry on the SSE stream.
type EntryEvent struct {
	Index int         `json:"index"`
	Entry model.Entry `json:"entry"`
}

// handleHistory replays the transcript. With follow=true the stream stays
// open and emits entries as turns are processed; otherwise it ends with an
// "end" event. Last-Event-ID resumes after the given entry.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx := r.Context()

	history, err := h.conversations.History(ctx, sessionID)
	if err != nil {
		if errors.Is(err, conversation.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	next := 0
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if n, err := strconv.Atoi(last); err == nil && n >= 0 {
			next = min(n+1, len(history))
		}
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	next, err = h.emitEntries(w, flusher, history, next)
	if err != nil {
		return
	}

	if r.URL.Query().Get("follow") != "true" {
		_ = utils.SendSSEEvent(w, flusher, "end", "", map[string]int{"entries": len(history)})
		return
	}

	h.logger.Debug("following history", zap.String("session_id", sessionID))
	h.follow(ctx, w, flusher, sessionID, next)
}

func (h *Handler) follow(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, next int) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("history stream closed", zap.String("session_id", sessionID))
			return
		case <-ticker.C:
			history, err := h.conversations.History(ctx, sessionID)
			if err != nil {
				_ = utils.SendSSEEvent(w, flusher, "error", "", map[string]string{"message": err.Error()})
				return
			}
			if len(history) == next {
				if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
					return
				}
				continue
			}
			if next, err = h.emitEntries(w, flusher, history, next); err != nil {
				return
			}
		}
	}
}

func (h *Handler) emitEntries(w http.ResponseWriter, flusher http.Flusher, history []model.Entry, from int) (int, error) {
	for i := from; i < len(history); i++ {
		if err := utils.SendSSEEvent(w, flusher, "entry", strconv.Itoa(i), EntryEvent{Index: i, Entry: history[i]}); err != nil {
			return i, err
		}
	}
	if from > len(history) {
		return from, nil
	}
	return len(history), nil
}
