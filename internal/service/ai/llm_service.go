package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/internal/config"
	"github.com/zhouzirui/chat-widget/internal/model/chat"
)

var ErrEmptyAnswer = errors.New("model returned an empty answer")

// Service answers questions the canned responses do not cover
type Service struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	system       string
	historyLimit int
	timeout      time.Duration
}

// NewService creates the Ark-backed responder described by cfg
func NewService(ctx context.Context, cfg config.AIConfig, p PromptConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.HistoryLimit, cfg.Timeout, p)
}

// NewServiceWithModel builds the prompt chain around an existing chat model
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, historyLimit int, timeout time.Duration, p PromptConfig) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	if historyLimit < 1 {
		historyLimit = 10
	}
	return &Service{
		chain:        runnable,
		system:       BuildSystemPrompt(p),
		historyLimit: historyLimit,
		timeout:      timeout,
	}, nil
}

// Respond produces a reply to text given the conversation so far. history
// may already end with text itself.
func (s *Service) Respond(ctx context.Context, history []chat.Message, text string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	response, err := s.chain.Invoke(ctx, s.buildChainInput(history, text))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	answer := strings.TrimSpace(response.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	log.Debug().Int("length", len(answer)).Msg("[ai] generated response")
	return answer, nil
}

func (s *Service) buildChainInput(history []chat.Message, text string) map[string]any {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Origin == chat.OriginUser && last.Kind == chat.KindText && strings.EqualFold(strings.TrimSpace(last.Text), strings.TrimSpace(text)) {
			history = history[:n-1]
		}
	}
	return map[string]any{
		"system":  s.system,
		"history": s.buildHistoryMessages(history),
		"query":   text,
	}
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > s.historyLimit {
		startIdx = len(messages) - s.historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		content := msg.Text
		if msg.Kind == chat.KindImage {
			content = "[imagem]"
		}
		switch msg.Origin {
		case chat.OriginUser:
			history = append(history, schema.UserMessage(content))
		case chat.OriginAgent:
			history = append(history, schema.AssistantMessage(content, nil))
		}
	}

	return history
}
