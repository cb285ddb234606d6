package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/chat-wrapper/internal/apperror"
	"github.com/sakif/chat-wrapper/internal/completion"
	"github.com/sakif/chat-wrapper/internal/metrics"
	"github.com/sakif/chat-wrapper/internal/model"
	"github.com/sakif/chat-wrapper/internal/ratelimit"
	"github.com/sakif/chat-wrapper/internal/repository"
)

// ChatService runs one chat turn: rate limit, assemble context, call the
// completion API, persist both messages and the usage row.
type ChatService struct {
	messages  repository.MessageRepository
	usage     repository.UsageRepository
	completer completion.Completer
	limiter   *ratelimit.Limiter
	rates     completion.Rates
	now       Clock
	logger    *slog.Logger
}

// ChatConfig carries the non-repository collaborators of ChatService.
type ChatConfig struct {
	Completer completion.Completer
	Limiter   *ratelimit.Limiter
	// Model selects the price table entry used for cost estimates.
	Model string
	Now   Clock
}

func NewChatService(
	messages repository.MessageRepository,
	usage repository.UsageRepository,
	cfg ChatConfig,
	logger *slog.Logger,
) *ChatService {
	rates, known := completion.RatesFor(cfg.Model)
	if !known {
		logger.Warn("no price table entry for model; using default rates",
			slog.String("model", cfg.Model),
			slog.String("fallback", completion.DefaultModel),
		)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ChatService{
		messages:  messages,
		usage:     usage,
		completer: cfg.Completer,
		limiter:   cfg.Limiter,
		rates:     rates,
		now:       now,
		logger:    logger,
	}
}

// ChatReply is what a successful turn returns to the caller.
type ChatReply struct {
	Reply            string      `json:"reply"`
	Usage            model.Usage `json:"usage"`
	EstimatedCostUSD float64     `json:"estimatedCostUsd"`
}

// SystemPrompt is the instruction placed before the replayed history.
func SystemPrompt(user *model.User) string {
	return fmt.Sprintf("You are a friendly, helpful assistant for %s.\n"+
		"Keep responses concise but clear. Use plain language.\n"+
		"You are running inside a lightweight personal web wrapper.", user.Name())
}

// Send runs one chat turn for user.
//
// The per-user rate limit is checked before anything else; a rejected call
// touches no history. The user's message is stored before the completion
// call and the reply after it, so a failed call still keeps what the user
// wrote. Once the call is dispatched the turn runs to completion even if
// the client goes away.
func (s *ChatService) Send(ctx context.Context, user *model.User, text string) (*ChatReply, error) {
	if !s.limiter.Allow(ratelimit.ChatPerUser, user.ID) {
		metrics.RateLimited.WithLabelValues(ratelimit.ChatPerUser.Name).Inc()
		return nil, apperror.RateLimited("You're sending messages too quickly. Please wait a minute and try again.")
	}

	if strings.TrimSpace(text) == "" {
		return nil, apperror.ValidationFailed("message", "message is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperror.ValidationFailed("message",
			fmt.Sprintf("message must be %d characters or fewer", MaxMessageLength))
	}

	ctx = context.WithoutCancel(ctx)

	recent, err := s.messages.Recent(ctx, user.ID, PromptWindow)
	if err != nil {
		return nil, fmt.Errorf("service/chat: loading context: %w", err)
	}

	prompt := make([]model.ChatMessage, 0, len(recent)+2)
	prompt = append(prompt, model.ChatMessage{Role: model.RoleSystem, Content: SystemPrompt(user)})
	for _, m := range recent {
		prompt = append(prompt, model.ChatMessage{Role: m.Role, Content: m.Content})
	}
	prompt = append(prompt, model.ChatMessage{Role: model.RoleUser, Content: text})

	if err := s.messages.Append(ctx, &model.Message{UserID: user.ID, Role: model.RoleUser, Content: text}); err != nil {
		return nil, fmt.Errorf("service/chat: saving user message: %w", err)
	}

	start := time.Now()
	result, err := s.completer.Complete(ctx, prompt)
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CompletionCalls.WithLabelValues("error").Inc()
		s.logger.Error("completion failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream(err)
	}
	metrics.CompletionCalls.WithLabelValues("ok").Inc()

	if err := s.messages.Append(ctx, &model.Message{UserID: user.ID, Role: model.RoleAssistant, Content: result.Text}); err != nil {
		return nil, fmt.Errorf("service/chat: saving reply: %w", err)
	}

	usage := result.Usage
	if usage.TotalTokens <= 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	cost := s.rates.Cost(usage.InputTokens, usage.OutputTokens)

	rec := &model.UsageRecord{
		UserID:       user.ID,
		Date:         s.now().UTC().Format(model.DateLayout),
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.TotalTokens,
		CostUSD:      cost,
	}
	if err := s.usage.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("service/chat: recording usage: %w", err)
	}

	metrics.Tokens.WithLabelValues("input").Add(float64(usage.InputTokens))
	metrics.Tokens.WithLabelValues("output").Add(float64(usage.OutputTokens))
	metrics.CostUSD.Add(cost)

	return &ChatReply{Reply: result.Text, Usage: usage, EstimatedCostUSD: cost}, nil
}

// History returns the most recent messages for the UI, oldest first.
func (s *ChatService) History(ctx context.Context, userID string) ([]model.ChatMessage, error) {
	recent, err := s.messages.Recent(ctx, userID, HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("service/chat: loading history: %w", err)
	}
	out := make([]model.ChatMessage, 0, len(recent))
	for _, m := range recent {
		out = append(out, model.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

// UsageSummary returns per-day totals for the last UsageDays days with
// activity, newest first.
func (s *ChatService) UsageSummary(ctx context.Context, userID string) ([]model.UsageDay, error) {
	summary, err := s.usage.Summary(ctx, userID, UsageDays)
	if err != nil {
		return nil, fmt.Errorf("service/chat: loading usage: %w", err)
	}
	return summary, nil
}
