package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/naviable/naviable-go/internal/agent"
	"github.com/naviable/naviable-go/internal/conversation"
	"github.com/naviable/naviable-go/internal/llm"
	"github.com/naviable/naviable-go/internal/logger"
)

// Finish is the selection that ends a routing pass.
const Finish agent.Capability = "FINISH"

// Policy selects the next capability for a transcript, or Finish.
type Policy interface {
	Select(ctx context.Context, t conversation.Transcript) (agent.Capability, error)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ctx context.Context, t conversation.Transcript) (agent.Capability, error)

// Select calls f.
func (f PolicyFunc) Select(ctx context.Context, t conversation.Transcript) (agent.Capability, error) {
	return f(ctx, t)
}

// KeywordPolicy selects with the deterministic keyword classifier.
type KeywordPolicy struct{}

// Select implements Policy.
func (KeywordPolicy) Select(_ context.Context, t conversation.Transcript) (agent.Capability, error) {
	return ClassifyTranscript(t), nil
}

var workerDescriptions = []struct {
	capability  agent.Capability
	description string
}{
	{agent.Flight, "Books flights, checks flight prices or schedules, finds the best airfare deals and answers flight-related travel questions."},
	{agent.Lodging, "Books hotels, checks hotel prices or availability, finds accommodations and answers hotel-related travel questions."},
	{agent.General, "Answers general travel questions that need neither flight nor hotel search."},
}

func routingPrompt() string {
	var b strings.Builder
	b.WriteString("You are a supervisor coordinating travel assistants for travelers with accessibility needs.\n")
	b.WriteString("Decide which worker should act next, or FINISH when the conversation already holds an answer.\n")
	b.WriteString("Always prioritize the most accessible options. Workers:\n")
	for _, w := range workerDescriptions {
		fmt.Fprintf(&b, "- %s: %s\n", w.capability, w.description)
	}
	fmt.Fprintf(&b, "Respond with a JSON object {\"next_node\": \"<worker or %s>\"} and nothing else.", Finish)
	return b.String()
}

// LLMPolicy asks the model which worker acts next.
type LLMPolicy struct {
	llmClient llm.Client
	model     string
}

// NewLLMPolicy creates a new LLMPolicy.
func NewLLMPolicy(llmClient llm.Client, model string) *LLMPolicy {
	return &LLMPolicy{llmClient: llmClient, model: model}
}

// Select implements Policy. Replies that are not valid JSON or that name an
// unknown worker select Finish.
func (p *LLMPolicy) Select(ctx context.Context, t conversation.Transcript) (agent.Capability, error) {
	messages := append([]openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: routingPrompt(),
	}}, llm.Messages(t)...)

	content, err := llm.Complete(ctx, p.llmClient, openai.ChatCompletionRequest{
		Model:          p.model,
		Messages:       messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return Finish, fmt.Errorf("routing decision: %w", err)
	}
	return ParseNextNode(content), nil
}

// ParseNextNode reads {"next_node": "..."} from a model reply.
func ParseNextNode(content string) agent.Capability {
	var decision struct {
		NextNode string `json:"next_node"`
	}
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		logger.L.Warn("unparsable routing decision", "content", content, "error", err)
		return Finish
	}
	next := agent.Capability(strings.TrimSpace(decision.NextNode))
	if !next.Valid() {
		return Finish
	}
	return next
}
