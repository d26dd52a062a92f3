package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/naviable/naviable-go/internal/llm"
	"github.com/naviable/naviable-go/internal/logger"
	"github.com/naviable/naviable-go/pkg/tools"
)

// ErrTooManyTurns is returned when the model keeps requesting tools past the turn limit.
var ErrTooManyTurns = errors.New("exceeded maximum interaction turns")

// FSM states of one tool-calling exchange.
type loopState string

const (
	stateStart          loopState = "Start"
	stateReadyToCallLLM loopState = "ReadyToCallLLM"
	stateExecutingTools loopState = "ExecutingTools"
	stateDone           loopState = "Done"  // Terminal: successful completion
	stateError          loopState = "Error" // Terminal: error state
)

// FSM triggers.
type loopTrigger string

const (
	triggerProcessInput            loopTrigger = "ProcessInput"
	triggerLLMRespondedWithContent loopTrigger = "LLMRespondedWithContent"
	triggerLLMRequestedTools       loopTrigger = "LLMRequestedTools"
	triggerToolsExecutionCompleted loopTrigger = "ToolsExecutionCompleted"
	triggerErrorOccurred           loopTrigger = "ErrorOccurred"
)

const defaultMaxTurns = 5

// ToolAgent answers with an LLM that may call tools from a ToolManager before
// producing its reply. Travel capabilities also run the reply through an
// Extractor to recover structured options.
type ToolAgent struct {
	llmClient llm.Client
	model     string
	tools     *tools.ToolManager
	extractor *Extractor
	maxTurns  int
}

// Option configures a ToolAgent.
type Option func(*ToolAgent)

// WithMaxTurns bounds the number of LLM calls per invocation.
func WithMaxTurns(n int) Option {
	return func(a *ToolAgent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// WithExtractor enables structured option extraction for travel capabilities.
func WithExtractor(e *Extractor) Option {
	return func(a *ToolAgent) { a.extractor = e }
}

// NewToolAgent creates a new agent. tm may be nil when no tools are available.
func NewToolAgent(llmClient llm.Client, model string, tm *tools.ToolManager, opts ...Option) *ToolAgent {
	a := &ToolAgent{
		llmClient: llmClient,
		model:     model,
		tools:     tm,
		maxTurns:  defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// toolRun is the FSM context of one invocation.
type toolRun struct {
	messages []openai.ChatCompletionMessage
	reply    openai.ChatCompletionMessage
	turn     int
	err      error
}

// Invoke runs the LLM → tools → LLM loop until the model answers with content.
func (a *ToolAgent) Invoke(ctx context.Context, req Request) (Result, error) {
	run := &toolRun{}
	if req.Instructions != "" {
		run.messages = append(run.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.Instructions,
		})
	}
	run.messages = append(run.messages, llm.Messages(req.Transcript)...)
	definitions := a.definitions()

	fsm := stateless.NewStateMachineWithMode(stateStart, stateless.FiringQueued)

	fsm.Configure(stateStart).
		Permit(triggerProcessInput, stateReadyToCallLLM)

	// State: ReadyToCallLLM
	// Action: Call LLM with current messages.
	fsm.Configure(stateReadyToCallLLM).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if run.turn >= a.maxTurns {
				logger.L.Warn("Max interaction turns reached.", "capability", req.Capability, "maxTurns", a.maxTurns)
				run.err = ErrTooManyTurns
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			run.turn++
			logger.L.Debug("FSM: Entering ReadyToCallLLM", "capability", req.Capability, "turn", run.turn)

			resp, err := a.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:    a.model,
				Messages: run.messages,
				Tools:    definitions,
			})
			if err != nil {
				run.err = fmt.Errorf("llm call: %w", err)
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			if len(resp.Choices) == 0 {
				run.err = llm.ErrEmptyResponse
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			run.reply = resp.Choices[0].Message

			if len(run.reply.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, triggerLLMRequestedTools)
			}
			return fsm.FireCtx(ctx, triggerLLMRespondedWithContent)
		}).
		Permit(triggerLLMRequestedTools, stateExecutingTools).
		Permit(triggerLLMRespondedWithContent, stateDone).
		Permit(triggerErrorOccurred, stateError)

	// State: ExecutingTools
	// Action: Run each requested tool and feed the outputs back.
	fsm.Configure(stateExecutingTools).
		OnEntry(func(ctx context.Context, _ ...any) error {
			run.messages = append(run.messages, run.reply)
			for _, call := range run.reply.ToolCalls {
				run.messages = append(run.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    a.executeTool(ctx, call),
					ToolCallID: call.ID,
					Name:       call.Function.Name,
				})
			}
			return fsm.FireCtx(ctx, triggerToolsExecutionCompleted)
		}).
		Permit(triggerToolsExecutionCompleted, stateReadyToCallLLM)

	fsm.Configure(stateDone)
	fsm.Configure(stateError)

	if err := fsm.FireCtx(ctx, triggerProcessInput); err != nil {
		return Result{}, fmt.Errorf("tool loop: %w", err)
	}
	if run.err != nil {
		return Result{}, run.err
	}
	if state := fsm.MustState(); state != stateDone {
		return Result{}, fmt.Errorf("tool loop ended in unexpected state: %v", state)
	}

	res := Result{Capability: req.Capability, Reply: run.reply.Content}
	if a.extractor != nil && req.Capability.Travel() {
		a.extractor.Fill(ctx, &res)
	}
	return res, nil
}

func (a *ToolAgent) definitions() []openai.Tool {
	if a.tools == nil {
		return nil
	}
	list := a.tools.List()
	defs := make([]openai.Tool, 0, len(list))
	for _, t := range list {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return defs
}

// executeTool runs one tool call. Failures are reported to the model as text.
func (a *ToolAgent) executeTool(ctx context.Context, call openai.ToolCall) string {
	name := call.Function.Name
	if a.tools == nil {
		return "Error: no tools available to execute " + name
	}
	tool, err := a.tools.GetTool(name)
	if err != nil {
		logger.L.Warn("LLM requested unknown tool", "tool", name)
		return "Error: unknown tool " + name
	}

	var args map[string]any
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			logger.L.Error("Failed to unmarshal tool arguments", "tool", name, "error", err)
			return "Error: could not parse arguments for tool " + name
		}
	}

	logger.L.Debug("Calling tool", "tool", name, "arguments", args)
	out, err := tool.Run(ctx, args)
	if err != nil {
		logger.L.Warn("Tool call failed", "tool", name, "error", err)
		return fmt.Sprintf("Error: tool %s failed: %v", name, err)
	}
	return out
}
