package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rudeai/innerlog/backend/internal/analysis/intent"
	"github.com/rudeai/innerlog/backend/internal/model/protocol"
	"github.com/rudeai/innerlog/backend/internal/model/record"
	model "github.com/rudeai/innerlog/backend/internal/model/session"
)

const (
	replyProvideSituation = "Provide situation details."
	replyConfirmLog       = "Confirm log accuracy?"
	replyConfirmStrict    = "Confirm log accuracy? Yes or no."
	replyRequestCorrected = "Log rejected. Provide corrected situation details."
	replyAskReady         = "Are you override-ready?"
	replyAskReadyStrict   = "Are you override-ready? Yes or no."
	replyReportStatus     = "Execute sequence. Report completion status."
	replyAskResult        = "Did the override sequence resolve the emotional state?"
	replyLogClosed        = "Log is closed."
	replyClosedReopen     = "Log is closed. Provide situation details to open a new log."
	replySessionReset     = "Session reset. Provide situation details."
	replyAmbiguousLog     = "No pattern recognized. Insight is provisional."
)

// transition is the only place a session changes state. It mutates sess and
// returns the reply text.
func (s *Service) transition(ctx context.Context, sess *model.Session, text string, now time.Time) string {
	input := strings.TrimSpace(text)

	switch sess.State {
	case model.StateInitial:
		return s.onInitial(ctx, sess, input, now)
	case model.StateConfirmingLog:
		return s.onConfirmingLog(ctx, sess, input, now)
	case model.StateAskingOverrideReady:
		return s.onAskingReady(sess, input, now)
	case model.StateProvidingOverride:
		if input == "" {
			return replyReportStatus
		}
		sess.State = model.StateCheckingOverrideResult
		return replyAskResult
	case model.StateCheckingOverrideResult:
		if input == "" {
			return replyAskResult
		}
		sess.OverrideResult = intent.ClassifyOutcome(input)
		s.complete(sess, now)
		return fmt.Sprintf("Outcome recorded: %s. %s", sess.OverrideResult, replyLogClosed)
	case model.StateComplete:
		return s.onComplete(ctx, sess, input, now)
	}

	s.logger.Warn("session in unknown state, restarting", zap.String("session_id", sess.ID), zap.String("state", string(sess.State)))
	clearCycle(sess)
	return replySessionReset
}

func (s *Service) onInitial(ctx context.Context, sess *model.Session, input string, now time.Time) string {
	if input == "" {
		return replyProvideSituation
	}
	s.attachLog(ctx, sess, input, now)
	sess.State = model.StateConfirmingLog
	return logReply(*sess.CurrentLog)
}

func (s *Service) onConfirmingLog(ctx context.Context, sess *model.Session, input string, now time.Time) string {
	if intent.Rejection(input) {
		if body, ok := intent.Correction(input); ok {
			s.attachLog(ctx, sess, body, now)
			return logReply(*sess.CurrentLog)
		}
	}

	switch intent.Classify(input) {
	case intent.Affirmative:
		sess.AwaitingCorrection = false
		sess.State = model.StateAskingOverrideReady
		return replyAskReady
	case intent.Negative:
		if body, ok := intent.Correction(input); ok {
			s.attachLog(ctx, sess, body, now)
			return logReply(*sess.CurrentLog)
		}
		sess.AwaitingCorrection = true
		return replyRequestCorrected
	case intent.Empty:
		if sess.AwaitingCorrection {
			return replyRequestCorrected
		}
		return replyConfirmStrict
	default:
		if sess.AwaitingCorrection {
			s.attachLog(ctx, sess, input, now)
			return logReply(*sess.CurrentLog)
		}
		return replyConfirmStrict
	}
}

func (s *Service) onAskingReady(sess *model.Session, input string, now time.Time) string {
	switch intent.Classify(input) {
	case intent.Affirmative:
		sess.OverrideReady = model.ReadinessYes
		sess.State = model.StateProvidingOverride
		return s.overrideReply(*sess.CurrentLog)
	case intent.Negative:
		sess.OverrideReady = model.ReadinessNo
		s.complete(sess, now)
		return replyLogClosed
	default:
		return replyAskReadyStrict
	}
}

func (s *Service) onComplete(ctx context.Context, sess *model.Session, input string, now time.Time) string {
	if s.policy == ReentryClosed {
		return replyLogClosed
	}
	if input == "" {
		return replyClosedReopen
	}
	s.archive(sess, now.UTC(), false)
	clearCycle(sess)
	return s.onInitial(ctx, sess, input, now)
}

func (s *Service) attachLog(ctx context.Context, sess *model.Session, text string, now time.Time) {
	log := s.logs.CreateLog(ctx, text)
	log.ID = logID(sess.ID, now.In(s.loc))
	sess.CurrentLog = &log
	sess.AwaitingCorrection = false
}

func (s *Service) complete(sess *model.Session, now time.Time) {
	ts := now.UTC()
	sess.State = model.StateComplete
	sess.CompletedAt = &ts
	sess.AwaitingCorrection = false
}

// archive moves the cycle in progress into the session's cycle list.
func (s *Service) archive(sess *model.Session, now time.Time, reset bool) {
	if sess.CurrentLog == nil {
		return
	}
	completed := now
	if sess.CompletedAt != nil {
		completed = *sess.CompletedAt
	}
	sess.Cycles = append(sess.Cycles, model.Cycle{
		Log:            sess.CurrentLog.Clone(),
		OverrideReady:  sess.OverrideReady,
		OverrideResult: sess.OverrideResult,
		CompletedAt:    completed,
		Reset:          reset,
	})
}

func clearCycle(sess *model.Session) {
	sess.State = model.StateInitial
	sess.CurrentLog = nil
	sess.OverrideReady = model.ReadinessUnknown
	sess.OverrideResult = model.OutcomeNone
	sess.CompletedAt = nil
	sess.AwaitingCorrection = false
}

func logID(sessionID string, at time.Time) string {
	prefix := sessionID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return prefix + "-" + at.Format("1504")
}

func logReply(log record.Log) string {
	var b strings.Builder
	b.WriteString("Situation logged. ID: ")
	b.WriteString(log.ID)
	b.WriteString("\n\n")
	b.WriteString(record.Render(log))
	b.WriteString("\n\n")
	switch {
	case log.PatternTag != "":
		fmt.Fprintf(&b, "Pattern recognized: %s.\n\n", log.PatternTag)
	case log.Ambiguous:
		b.WriteString(replyAmbiguousLog)
		b.WriteString("\n\n")
	}
	b.WriteString(replyConfirmLog)
	return b.String()
}

func (s *Service) overrideReply(log record.Log) string {
	steps := protocol.Resolve(s.protocols, log.PatternTag).Sequence(log.SomaticResponse)

	var b strings.Builder
	b.WriteString("Override sequence:\n\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n")
	b.WriteString(replyReportStatus)
	return b.String()
}
