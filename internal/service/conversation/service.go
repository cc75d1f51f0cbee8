// Package conversation drives a session through the clinical log protocol:
// situation intake, log confirmation, override readiness, override delivery
// and outcome capture.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rudeai/innerlog/backend/internal/analysis/pattern"
	"github.com/rudeai/innerlog/backend/internal/model/protocol"
	"github.com/rudeai/innerlog/backend/internal/model/record"
	model "github.com/rudeai/innerlog/backend/internal/model/session"
	sessionstore "github.com/rudeai/innerlog/backend/internal/service/session"
)

var (
	ErrSessionNotFound = sessionstore.ErrSessionNotFound
	ErrNoLog           = errors.New("session has no log")
)

// ReentryPolicy decides what a turn on a completed session does.
type ReentryPolicy string

const (
	// ReentryRestart archives the finished cycle and treats the text as a new situation.
	ReentryRestart ReentryPolicy = "restart"
	// ReentryClosed keeps the session closed and answers every turn with the closing remark.
	ReentryClosed ReentryPolicy = "closed"
)

// ParseReentryPolicy maps a configuration value to a policy; unknown values select restart.
func ParseReentryPolicy(raw string) ReentryPolicy {
	if strings.EqualFold(strings.TrimSpace(raw), string(ReentryClosed)) {
		return ReentryClosed
	}
	return ReentryRestart
}

// LogCreator turns situation text into a log.
type LogCreator interface {
	CreateLog(ctx context.Context, text string) record.Log
}

// LogCreatorFunc adapts a function to LogCreator.
type LogCreatorFunc func(ctx context.Context, text string) record.Log

// CreateLog calls f.
func (f LogCreatorFunc) CreateLog(ctx context.Context, text string) record.Log {
	return f(ctx, text)
}

// FromEngine wraps the heuristic engine as a LogCreator.
func FromEngine(engine *pattern.Engine) LogCreator {
	return LogCreatorFunc(func(_ context.Context, text string) record.Log {
		return engine.Create(text)
	})
}

// Reply is the outcome of one processed turn.
type Reply struct {
	Text  string      `json:"reply"`
	State model.State `json:"state"`
}

// Config controls protocol behaviour.
type Config struct {
	ReentryPolicy ReentryPolicy
	Location      *time.Location
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source for history entries and log ids.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service owns every state change of every session.
type Service struct {
	store     *sessionstore.Store
	logs      LogCreator
	protocols protocol.Store
	policy    ReentryPolicy
	loc       *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// NewService wires the state machine to its collaborators. A nil protocol
// store selects the seeded catalogue.
func NewService(store *sessionstore.Store, logs LogCreator, protocols protocol.Store, cfg Config, opts ...Option) *Service {
	if protocols == nil {
		protocols = protocol.NewMemoryStore(protocol.Seed())
	}
	policy := cfg.ReentryPolicy
	if policy != ReentryClosed {
		policy = ReentryRestart
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Service{
		store:     store,
		logs:      logs,
		protocols: protocols,
		policy:    policy,
		loc:       loc,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession creates a session in the initial state and returns its id.
func (s *Service) StartSession(ctx context.Context) (string, error) {
	sess, err := s.store.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("session started", zap.String("session_id", sess.ID))
	return sess.ID, nil
}

// ProcessTurn applies one user turn. The user text and the reply are appended
// to history before ProcessTurn returns.
func (s *Service) ProcessTurn(ctx context.Context, sessionID, text string) (Reply, error) {
	var (
		reply Reply
		from  model.State
	)

	_, err := s.store.Update(ctx, sessionID, func(sess *model.Session) error {
		now := s.now()
		from = sess.State

		sess.History = append(sess.History, model.Entry{
			Role:      model.RoleUser,
			Text:      text,
			State:     sess.State,
			Timestamp: now.UTC(),
		})

		out := s.transition(ctx, sess, text, now)

		sess.TurnCount++
		sess.UpdatedAt = now.UTC()
		sess.History = append(sess.History, model.Entry{
			Role:      model.RoleAssistant,
			Text:      out,
			State:     sess.State,
			Timestamp: now.UTC(),
		})

		if err := sess.Validate(); err != nil {
			return fmt.Errorf("turn left session inconsistent: %w", err)
		}
		reply = Reply{Text: out, State: sess.State}
		return nil
	})
	if err != nil {
		if errors.Is(err, sessionstore.ErrSessionNotFound) {
			return Reply{}, ErrSessionNotFound
		}
		s.logger.Error("turn rejected", zap.String("session_id", sessionID), zap.Error(err))
		return Reply{}, err
	}

	s.logger.Debug("turn processed",
		zap.String("session_id", sessionID),
		zap.String("from", string(from)),
		zap.String("to", string(reply.State)),
	)
	return reply, nil
}

// GetSessionInfo returns a snapshot of the session.
func (s *Service) GetSessionInfo(ctx context.Context, sessionID string) (model.Info, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return model.Info{}, err
	}
	return sess.Info(), nil
}

// ResetSession returns the session to the initial state. A log in progress
// is archived as a reset cycle and history is kept.
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	_, err := s.store.Update(ctx, sessionID, func(sess *model.Session) error {
		now := s.now().UTC()
		if sess.CurrentLog != nil {
			s.archive(sess, now, true)
		}
		clearCycle(sess)
		sess.UpdatedAt = now
		sess.History = append(sess.History, model.Entry{
			Role:      model.RoleSystem,
			Text:      replySessionReset,
			State:     sess.State,
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("session reset", zap.String("session_id", sessionID))
	return nil
}

// ListActiveSessions returns the ids of sessions that have not completed, oldest first.
func (s *Service) ListActiveSessions(ctx context.Context) ([]string, error) {
	sessions, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
	}
	return ids, nil
}

// CurrentLog returns the log of the cycle in progress, or of the cycle that
// just completed.
func (s *Service) CurrentLog(ctx context.Context, sessionID string) (record.Log, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return record.Log{}, err
	}
	if sess.CurrentLog == nil {
		return record.Log{}, ErrNoLog
	}
	return *sess.CurrentLog, nil
}

// History returns the session transcript.
func (s *Service) History(ctx context.Context, sessionID string) ([]model.Entry, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.History, nil
}

// Session returns the full session snapshot including archived cycles.
func (s *Service) Session(ctx context.Context, sessionID string) (model.Session, error) {
	return s.store.Get(ctx, sessionID)
}

// DeleteSession drops the session from the store.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// Protocols exposes the override catalogue.
func (s *Service) Protocols() []protocol.Protocol {
	return s.protocols.List()
}
