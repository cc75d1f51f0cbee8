package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rudeai/innerlog/backend/internal/analysis/pattern"
	"github.com/rudeai/innerlog/backend/internal/config"
	"github.com/rudeai/innerlog/backend/internal/handler"
	"github.com/rudeai/innerlog/backend/internal/logging"
	"github.com/rudeai/innerlog/backend/internal/model/protocol"
	"github.com/rudeai/innerlog/backend/internal/service/classifier"
	"github.com/rudeai/innerlog/backend/internal/service/conversation"
	sessionstore "github.com/rudeai/innerlog/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	table := pattern.DefaultTable()
	if cfg.Conversation.PatternTablePath != "" {
		table, err = pattern.LoadTable(cfg.Conversation.PatternTablePath)
		if err != nil {
			logger.Fatal("failed to load pattern table", zap.String("path", cfg.Conversation.PatternTablePath), zap.Error(err))
		}
		logger.Info("pattern table loaded", zap.String("path", cfg.Conversation.PatternTablePath), zap.Int("rules", len(table.Rules())))
	}
	engine := pattern.NewEngine(table, pattern.WithLocation(cfg.Conversation.Location))

	// The chat model is optional; without it the classifier is heuristic-only.
	var chatModel model.ChatModel
	if cfg.AI.PatternLLMEnabled {
		if cfg.AI.Enabled() {
			chatModel, err = cfg.AI.NewChatModel(ctx)
			if err != nil {
				logger.Warn("failed to initialize chat model, continuing with heuristics", zap.Error(err))
				chatModel = nil
			}
		} else {
			logger.Warn("pattern classifier requested but Ark credentials are missing")
		}
	}

	classifierSvc, err := classifier.NewService(ctx, chatModel, engine, classifier.Config{
		Enabled:       cfg.AI.PatternLLMEnabled,
		MinConfidence: cfg.AI.PatternMinConfident,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize pattern classifier", zap.Error(err))
	}
	if classifierSvc.Enabled() {
		logger.Info("pattern classifier enabled", zap.String("model", cfg.AI.Model))
	}

	protocols := protocol.NewMemoryStore(protocol.Seed())
	conversations := conversation.NewService(
		sessionstore.NewStore(),
		classifierSvc,
		protocols,
		conversation.Config{
			ReentryPolicy: conversation.ParseReentryPolicy(cfg.Conversation.ReentryPolicy),
			Location:      cfg.Conversation.Location,
		},
		conversation.WithLogger(logger.Named("conversation")),
	)

	router := handler.NewRouter(handler.Dependencies{
		Conversations: conversations,
		Logs:          classifierSvc,
		Protocols:     protocols,
		Logger:        logger,
	})

	startServer(ctx, logger, cfg.Server, router)
}

func startServer(ctx context.Context, logger *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("innerlog backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
