package logs

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rudeai/innerlog/backend/internal/model/record"
	"github.com/rudeai/innerlog/backend/internal/service/conversation"
	"github.com/rudeai/innerlog/backend/pkg/utils"
)

// Handler exposes standalone log creation and parsing.
type Handler struct {
	logs conversation.LogCreator
}

// New creates a logs handler.
func New(logs conversation.LogCreator) *Handler {
	return &Handler{logs: logs}
}

// RegisterRoutes registers log routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/logs", h.handleCreate)
	r.Post("/logs/parse", h.handleParse)
}

type createResponse struct {
	Log      record.Log `json:"log"`
	Rendered string     `json:"rendered"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	log := h.logs.CreateLog(r.Context(), payload.Text)
	utils.RespondJSON(w, http.StatusOK, createResponse{Log: log, Rendered: record.Render(log)})
}

type parseResponse struct {
	Log    record.Log `json:"log"`
	Issues []string   `json:"issues,omitempty"`
}

// handleParse reads a rendered block back into a log and reports structural
// gaps as issues. With strict=true an incomplete log is rejected with 422.
func (h *Handler) handleParse(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Rendered string `json:"rendered"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	log, err := record.Parse(payload.Rendered)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, record.ErrMalformedLog) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	var issues []string
	for _, problem := range record.Validate(log) {
		issues = append(issues, problem.Error())
	}
	if len(issues) > 0 && r.URL.Query().Get("strict") == "true" {
		utils.RespondJSON(w, http.StatusUnprocessableEntity, parseResponse{Log: log, Issues: issues})
		return
	}
	utils.RespondJSON(w, http.StatusOK, parseResponse{Log: log, Issues: issues})
}
