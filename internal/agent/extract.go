package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/naviable/naviable-go/internal/llm"
	"github.com/naviable/naviable-go/internal/logger"
)

const extractPrompt = `Extract the travel options from the assistant reply below.
Respond with a JSON object with exactly these fields:
{"flights": [{"airline": "", "price": "", "dates": "", "link": "", "accessibility": ""}],
 "hotels": [{"name": "", "price": "", "dates": "", "link": "", "accessibility": ""}],
 "follow_up": ""}
Use empty lists when the reply has no options. "follow_up" holds any question the
reply asks the traveler, or an empty string.`

// Extractor recovers structured options from a free-text agent reply.
type Extractor struct {
	llmClient llm.Client
	model     string
}

// NewExtractor creates a new Extractor.
func NewExtractor(llmClient llm.Client, model string) *Extractor {
	return &Extractor{llmClient: llmClient, model: model}
}

type extraction struct {
	Flights  []FlightOption `json:"flights"`
	Hotels   []HotelOption  `json:"hotels"`
	FollowUp string         `json:"follow_up"`
}

// Fill populates the options and follow-up of res from res.Reply. When the
// model call or its JSON fails, options stay empty and the follow-up falls
// back to the last question in the reply.
func (e *Extractor) Fill(ctx context.Context, res *Result) {
	if strings.TrimSpace(res.Reply) == "" {
		return
	}
	content, err := llm.Complete(ctx, e.llmClient, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractPrompt},
			{Role: openai.ChatMessageRoleUser, Content: res.Reply},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		logger.L.Warn("option extraction failed", "capability", res.Capability, "error", err)
		res.FollowUp = LastQuestion(res.Reply)
		return
	}

	var out extraction
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		logger.L.Warn("option extraction returned invalid JSON", "capability", res.Capability, "error", err)
		res.FollowUp = LastQuestion(res.Reply)
		return
	}
	switch res.Capability {
	case Flight:
		res.Flights = out.Flights
	case Lodging:
		res.Hotels = out.Hotels
	}
	res.FollowUp = strings.TrimSpace(out.FollowUp)
}

// LastQuestion returns the last line of text that asks something.
func LastQuestion(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(lines[i]), "-*#> "))
		if strings.HasSuffix(line, "?") {
			return line
		}
	}
	return ""
}
