// Package completion talks to the external chat-completion API.
//
// The rest of the application only sees the Completer interface: a list of
// role-tagged messages goes in, generated text plus token counts come out.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/oauth2"

	"github.com/sakif/chat-wrapper/internal/model"
)

// FallbackReply is used when the API returns a choice with no text.
const FallbackReply = "Sorry, I couldn't produce a response."

// ErrNoChoices means the API answered but returned nothing usable.
var ErrNoChoices = errors.New("completion: response contained no choices")

// Result is one completed exchange.
type Result struct {
	Text  string
	Usage model.Usage
	Model string
}

// Completer produces a reply for an ordered conversation.
type Completer interface {
	Complete(ctx context.Context, messages []model.ChatMessage) (*Result, error)
}

// Config selects the endpoint and generation parameters.
type Config struct {
	APIKey      string
	BaseURL     string // optional; e.g. a proxy or a compatible server, ending in /v1
	Model       string
	Temperature float32
}

// OpenAI is a Completer backed by the OpenAI chat completions endpoint.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAI builds the client. The API key is attached as a bearer token by
// an oauth2 transport, so it never sits in the go-openai config.
func NewOpenAI(cfg Config) *OpenAI {
	oc := openai.DefaultConfig("")
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIKey,
		TokenType:   "Bearer",
	}))

	return &OpenAI{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Model returns the configured model identifier.
func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) Complete(ctx context.Context, messages []model.ChatMessage) (*Result, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completion: calling %s: %w", o.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		text = FallbackReply
	}

	modelName := resp.Model
	if modelName == "" {
		modelName = o.model
	}

	return &Result{
		Text: text,
		Usage: model.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Model: modelName,
	}, nil
}
