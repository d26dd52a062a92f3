package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/naviable/naviable-go/internal/conversation"
	"github.com/naviable/naviable-go/pkg/tools"
)

type mockLLM struct {
	calls    []openai.ChatCompletionResponse
	requests []openai.ChatCompletionRequest
	err      error
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.calls) == 0 {
		panic("mockLLM: no more responses configured for request: " + r.Messages[0].Content)
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

func content(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: text}}}}
}

func toolCall(id, name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			ToolCalls: []openai.ToolCall{{
				ID:       id,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: args},
			}},
		},
	}}}
}

type stubTool struct {
	name string
	run  func(ctx context.Context, args map[string]any) (string, error)
}

func (s *stubTool) Name() string            { return s.name }
func (s *stubTool) Description() string     { return "stub " + s.name }
func (s *stubTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object","properties":{}}`) }
func (s *stubTool) Run(ctx context.Context, args map[string]any) (string, error) {
	return s.run(ctx, args)
}

func flightRequest() Request {
	return Request{
		Capability:   Flight,
		Transcript:   conversation.Transcript{conversation.User("flight from Boston to San Diego next week")},
		Instructions: "You are a flight agent.",
	}
}

// TestToolAgent_RespondsDirectly covers a reply without tool usage.
func TestToolAgent_RespondsDirectly(t *testing.T) {
	m := &mockLLM{calls: []openai.ChatCompletionResponse{content("Hello, how can I help with your trip?")}}
	a := NewToolAgent(m, "gpt", nil)

	res, err := a.Invoke(context.Background(), Request{
		Capability:   General,
		Transcript:   conversation.Transcript{conversation.User("hello there friend")},
		Instructions: "be nice",
	})
	require.NoError(t, err)
	require.Equal(t, "Hello, how can I help with your trip?", res.Reply)
	require.Equal(t, General, res.Capability)

	require.Len(t, m.requests, 1)
	msgs := m.requests[0].Messages
	require.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	require.Equal(t, "be nice", msgs[0].Content)
	require.Equal(t, "hello there friend", msgs[1].Content)
	require.Empty(t, m.requests[0].Tools)
}

// TestToolAgent_ToolThenExtraction covers LLM → tool → LLM followed by option extraction.
func TestToolAgent_ToolThenExtraction(t *testing.T) {
	tm := tools.NewToolManager()
	tm.RegisterTool(&stubTool{name: "deep_web_search", run: func(ctx context.Context, args map[string]any) (string, error) {
		require.Equal(t, map[string]any{"query": "BOS SAN"}, args)
		return "Delta $320 May 3-10", nil
	}})

	m := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCall("call_1", "deep_web_search", `{"query": "BOS SAN"}`),
		content("- Delta: $320, May 3-10, wheelchair assistance\n\nWould you like hotels as well?"),
		content(`{"flights":[{"airline":"Delta","price":"$320","dates":"May 3-10","link":"https://delta.com","accessibility":"Wheelchair assistance"}],"hotels":[],"follow_up":"Would you like hotels as well?"}`),
	}}
	a := NewToolAgent(m, "gpt", tm, WithExtractor(NewExtractor(m, "gpt")))

	res, err := a.Invoke(context.Background(), flightRequest())
	require.NoError(t, err)
	require.Len(t, res.Flights, 1)
	require.Equal(t, "Delta", res.Flights[0].Airline)
	require.Equal(t, "Would you like hotels as well?", res.FollowUp)

	require.Len(t, m.requests, 3)
	require.Len(t, m.requests[0].Tools, 1)
	second := m.requests[1].Messages
	last := second[len(second)-1]
	require.Equal(t, openai.ChatMessageRoleTool, last.Role)
	require.Equal(t, "call_1", last.ToolCallID)
	require.Equal(t, "Delta $320 May 3-10", last.Content)
	require.NotNil(t, m.requests[2].ResponseFormat)
}

// TestToolAgent_ToolFailureIsFedBack covers a failing tool whose error the model sees.
func TestToolAgent_ToolFailureIsFedBack(t *testing.T) {
	tm := tools.NewToolManager()
	tm.RegisterTool(&stubTool{name: "broken_tool", run: func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("MCP tool execution failed badly")
	}})
	m := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCall("call_2", "broken_tool", `{}`),
		content("Sorry, search is down right now."),
	}}
	a := NewToolAgent(m, "gpt", tm)

	res, err := a.Invoke(context.Background(), Request{Capability: General, Transcript: conversation.Transcript{conversation.User("use the broken tool")}})
	require.NoError(t, err)
	require.Equal(t, "Sorry, search is down right now.", res.Reply)

	toolMsg := m.requests[1].Messages[len(m.requests[1].Messages)-1]
	require.Contains(t, toolMsg.Content, "MCP tool execution failed badly")
}

func TestToolAgent_UnknownToolAndBadArguments(t *testing.T) {
	tm := tools.NewToolManager()
	tm.RegisterTool(&stubTool{name: "search", run: func(ctx context.Context, args map[string]any) (string, error) {
		t.Fatal("search must not run with unparsable arguments")
		return "", nil
	}})
	m := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCall("a", "nope", `{}`),
		toolCall("b", "search", `{not json`),
		content("done"),
	}}
	a := NewToolAgent(m, "gpt", tm)

	res, err := a.Invoke(context.Background(), Request{Capability: General, Transcript: conversation.Transcript{conversation.User("go go go")}})
	require.NoError(t, err)
	require.Equal(t, "done", res.Reply)
	require.Equal(t, "Error: unknown tool nope", m.requests[1].Messages[len(m.requests[1].Messages)-1].Content)
	require.Contains(t, m.requests[2].Messages[len(m.requests[2].Messages)-1].Content, "could not parse arguments")
}

func TestToolAgent_MaxTurns(t *testing.T) {
	tm := tools.NewToolManager()
	tm.RegisterTool(&stubTool{name: "loop", run: func(ctx context.Context, args map[string]any) (string, error) {
		return "again", nil
	}})
	m := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCall("1", "loop", `{}`),
		toolCall("2", "loop", `{}`),
		toolCall("3", "loop", `{}`),
	}}
	a := NewToolAgent(m, "gpt", tm, WithMaxTurns(2))

	_, err := a.Invoke(context.Background(), Request{Capability: General, Transcript: conversation.Transcript{conversation.User("loop forever please")}})
	require.ErrorIs(t, err, ErrTooManyTurns)
	require.Len(t, m.requests, 2)
}

func TestExtractor_FallsBackToLastQuestion(t *testing.T) {
	m := &mockLLM{calls: []openai.ChatCompletionResponse{content("not json at all")}}
	res := Result{Capability: Lodging, Reply: "I can help.\n- What city are you visiting?\nThanks"}

	NewExtractor(m, "gpt").Fill(context.Background(), &res)

	require.Empty(t, res.Hotels)
	require.Equal(t, "What city are you visiting?", res.FollowUp)
}

type recordingWeather struct{ cities []string }

func (r *recordingWeather) Lookup(_ context.Context, city string) string {
	r.cities = append(r.cities, city)
	return "**Weather in " + city + "**: Sunny"
}

type mapResolver map[string]string

func (m mapResolver) Resolve(token string) string {
	if c, ok := m[token]; ok {
		return c
	}
	return token
}

func TestWithWeather(t *testing.T) {
	w := &recordingWeather{}
	inner := Func(func(ctx context.Context, req Request) (Result, error) {
		return Result{Capability: Flight, Reply: "flights"}, nil
	})
	a := WithWeather(inner, mapResolver{"BOS": "Boston"}, w)

	req := flightRequest()
	req.Transcript = conversation.Transcript{conversation.User("fly from BOS to SAN on Friday")}
	res, err := a.Invoke(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []string{"Boston", "SAN"}, w.cities)
	require.Equal(t, "**Weather in Boston**: Sunny\n\n**Weather in SAN**: Sunny", res.Weather)

	w.cities = nil
	req.Transcript = conversation.Transcript{conversation.User("cheap flights please anywhere")}
	res, err = a.Invoke(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, w.cities)
	require.Empty(t, res.Weather)
}

func TestWithWeather_SkipsDegraded(t *testing.T) {
	w := &recordingWeather{}
	inner := Safe(Func(func(ctx context.Context, req Request) (Result, error) {
		return Result{}, errors.New("search backend down")
	}), time.Second)
	a := WithWeather(inner, mapResolver{"BOS": "Boston"}, w)

	req := flightRequest()
	req.Transcript = conversation.Transcript{conversation.User("fly from BOS to SAN on Friday")}
	res, err := a.Invoke(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Empty(t, res.Weather)
	require.Empty(t, w.cities)
}
