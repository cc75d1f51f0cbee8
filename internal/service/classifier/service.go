// Package classifier picks a pattern tag with a chat model when the
// heuristic table recognises none, and falls back to the heuristic log on
// any model failure.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/rudeai/innerlog/backend/internal/analysis/pattern"
	"github.com/rudeai/innerlog/backend/internal/model/record"
)

// Config controls the classifier.
type Config struct {
	Enabled       bool
	MinConfidence float32
}

const defaultMinConfidence = 0.5

type invoker interface {
	Invoke(ctx context.Context, input map[string]any, opts ...compose.Option) (*schema.Message, error)
}

// Service creates logs with the heuristic engine and asks the chat model to
// tag logs the table left unclassified.
type Service struct {
	engine        *pattern.Engine
	classifier    invoker
	enabled       bool
	minConfidence float32
	logger        *zap.Logger
}

// NewService builds the classifier. A nil chat model or a disabled config
// yields a heuristic-only service.
func NewService(ctx context.Context, chatModel model.ChatModel, engine *pattern.Engine, cfg Config, logger *zap.Logger) (*Service, error) {
	if engine == nil {
		engine = pattern.NewEngine(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	minConfidence := cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = defaultMinConfidence
	}

	svc := &Service{
		engine:        engine,
		enabled:       cfg.Enabled && chatModel != nil,
		minConfidence: minConfidence,
		logger:        logger.Named("classifier"),
	}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage(classifierUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled reports whether the model path is active.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// CreateLog implements the conversation log creator.
func (s *Service) CreateLog(ctx context.Context, text string) record.Log {
	log := s.engine.Create(text)
	if log.PatternTag != "" || !s.Enabled() || strings.TrimSpace(text) == "" {
		return log
	}

	tag, ok := s.classify(ctx, text)
	if !ok {
		return log
	}
	return s.engine.WithPattern(log, tag)
}

func (s *Service) classify(ctx context.Context, text string) (string, bool) {
	input := map[string]any{
		"patterns":  describePatterns(s.engine.Table()),
		"situation": strings.TrimSpace(text),
	}

	msg, err := s.classifier.Invoke(ctx, input)
	if err != nil {
		s.logger.Warn("classifier invoke failed, use heuristic log", zap.Error(err))
		return "", false
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", false
	}

	result, err := parseClassifierOutput(msg.Content)
	if err != nil {
		s.logger.Warn("classifier output parse failed, use heuristic log", zap.Error(err))
		return "", false
	}

	tag := strings.ToLower(strings.TrimSpace(result.Tag))
	if tag == "" || tag == "none" {
		return "", false
	}
	if _, known := s.engine.Table().Lookup(tag); !known {
		s.logger.Debug("classifier returned unknown tag", zap.String("tag", tag))
		return "", false
	}
	if result.Confidence < s.minConfidence {
		s.logger.Debug("classifier confidence below threshold",
			zap.String("tag", tag),
			zap.Float32("confidence", result.Confidence),
		)
		return "", false
	}
	return tag, true
}

// parseClassifierOutput extracts the JSON object from the model reply.
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func describePatterns(table *pattern.Table) string {
	var b strings.Builder
	for i, rule := range table.Rules() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(rule.Tag)
		if rule.Name != "" {
			b.WriteString(": ")
			b.WriteString(rule.Name)
		}
	}
	return b.String()
}

type classifierPayload struct {
	Tag        string  `json:"tag"`
	Confidence float32 `json:"confidence"`
	Reason     string  `json:"reason"`
}

const classifierSystemPrompt = "You classify short first-person descriptions of emotional situations into one behavioural pattern tag. " +
	"Answer with a single JSON object holding the fields tag (one of the listed tags, or none), confidence (a number from 0 to 1) and reason (one short sentence). " +
	"Output nothing besides the JSON object."

const classifierUserPrompt = "Known patterns:\n{patterns}\n\nSituation:\n{situation}\n\nReturn the JSON object."
