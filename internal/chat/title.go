package chat

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"

	"github.com/naviable/naviable-go/internal/llm"
)

const (
	maxTitleWords = 6
	maxTitleRunes = 60
)

const titlePrompt = "Summarize the following user request in 6 words or less, suitable as a chat thread title. No quotes or punctuation."

// FallbackTitle truncates the message for use as a title.
func FallbackTitle(message string) string {
	return lo.Ellipsis(strings.Join(strings.Fields(message), " "), maxTitleRunes)
}

// LLMTitler generates chat titles with the model.
type LLMTitler struct {
	llmClient llm.Client
	model     string
}

// NewLLMTitler creates a new LLMTitler.
func NewLLMTitler(llmClient llm.Client, model string) *LLMTitler {
	return &LLMTitler{llmClient: llmClient, model: model}
}

// Title implements Titler. The result has at most six words.
func (t *LLMTitler) Title(ctx context.Context, message string) (string, error) {
	content, err := llm.Complete(ctx, t.llmClient, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: titlePrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return "", err
	}

	words := strings.Fields(strings.Trim(content, "\"'`.!?# "))
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	return FallbackTitle(strings.Join(words, " ")), nil
}
