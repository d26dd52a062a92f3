package llm

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/naviable/naviable-go/internal/conversation"
)

func TestMessages_KeepsAssistantNames(t *testing.T) {
	got := Messages(conversation.Transcript{
		{Role: conversation.RoleUser, Content: "flight to Boston", Name: "traveler"},
		{Role: conversation.RoleAssistant, Content: "Found two flights.", Name: "Flight-Agent"},
		{Role: conversation.RoleAssistant, Content: "ok", Name: "not a valid name"},
	})

	require.Equal(t, []openai.ChatCompletionMessage{
		{Role: "user", Content: "flight to Boston"},
		{Role: "assistant", Content: "Found two flights.", Name: "Flight-Agent"},
		{Role: "assistant", Content: "ok"},
	}, got)
}
