package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rudeai/innerlog/backend/internal/handler/logs"
	protocolHandler "github.com/rudeai/innerlog/backend/internal/handler/protocol"
	"github.com/rudeai/innerlog/backend/internal/handler/session"
	"github.com/rudeai/innerlog/backend/internal/handler/stream"
	middlewarePkg "github.com/rudeai/innerlog/backend/internal/middleware"
	"github.com/rudeai/innerlog/backend/internal/model/protocol"
	"github.com/rudeai/innerlog/backend/internal/service/conversation"
	"github.com/rudeai/innerlog/backend/pkg/utils"
)

// Dependencies are the services the HTTP surface needs.
type Dependencies struct {
	Conversations *conversation.Service
	Logs          conversation.LogCreator
	Protocols     protocol.Store
	Logger        *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	sessionHandler := session.New(deps.Conversations, logger)
	logsHandler := logs.New(deps.Logs)
	protocolsHandler := protocolHandler.New(deps.Protocols)
	streamHandler := stream.New(deps.Conversations, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		sessionHandler.RegisterRoutes(api)
		logsHandler.RegisterRoutes(api)
		protocolsHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
