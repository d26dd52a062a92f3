package llm

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/naviable/naviable-go/internal/config"
	"github.com/naviable/naviable-go/internal/conversation"
)

// ErrEmptyResponse is returned when the model answers without any choice.
var ErrEmptyResponse = errors.New("llm returned no choices")

// namePattern is the participant name format the chat API accepts.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// NewClient creates a new OpenAI-compatible client whose requests are bounded
// by cfg.Timeout.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return openai.NewClientWithConfig(clientConfig)
}

// Messages converts a transcript into chat completion messages. Assistant
// turns keep their capability name so the model can tell workers apart.
func Messages(t conversation.Transcript) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(t))
	for _, m := range t {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		if m.Role == conversation.RoleAssistant && namePattern.MatchString(m.Name) {
			msg.Name = m.Name
		}
		out = append(out, msg)
	}
	return out
}

// Complete sends messages and returns the trimmed content of the first choice.
func Complete(ctx context.Context, c Client, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
