package protocol

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rudeai/innerlog/backend/internal/model/protocol"
	"github.com/rudeai/innerlog/backend/pkg/utils"
)

// Handler serves the override protocol catalogue.
type Handler struct {
	protocols protocol.Store
}

// New creates a protocol handler.
func New(protocols protocol.Store) *Handler {
	return &Handler{protocols: protocols}
}

// RegisterRoutes registers protocol routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/protocols", h.handleList)
	r.Get("/protocols/{tag}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.protocols.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.protocols.FindByTag(chi.URLParam(r, "tag"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "protocol not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}
