package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rudeai/innerlog/backend/internal/service/conversation"
	"github.com/rudeai/innerlog/backend/pkg/utils"
)

// Handler exposes the conversation protocol over HTTP.
type Handler struct {
	conversations *conversation.Service
	logger        *zap.Logger
}

// New creates a session handler.
func New(conversations *conversation.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{conversations: conversations, logger: logger.Named("http.session")}
}

// RegisterRoutes registers session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleListActive)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleInfo)
			r.Delete("/", h.handleDelete)
			r.Post("/turns", h.handleTurn)
			r.Post("/reset", h.handleReset)
			r.Get("/log", h.handleCurrentLog)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := h.conversations.StartSession(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	ids, err := h.conversations.ListActiveSessions(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.conversations.GetSessionInfo(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, info)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.conversations.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.conversations.ProcessTurn(r.Context(), chi.URLParam(r, "sessionID"), payload.Text)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.conversations.ResetSession(r.Context(), sessionID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	info, err := h.conversations.GetSessionInfo(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, info)
}

func (h *Handler) handleCurrentLog(w http.ResponseWriter, r *http.Request) {
	log, err := h.conversations.CurrentLog(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, log)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrNoLog):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
