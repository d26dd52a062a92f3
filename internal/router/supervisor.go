package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qmuntal/stateless"

	"github.com/naviable/naviable-go/internal/agent"
	"github.com/naviable/naviable-go/internal/conversation"
	"github.com/naviable/naviable-go/internal/logger"
	"github.com/naviable/naviable-go/internal/report"
)

const (
	DefaultMaxIterations = 6
	DefaultMinWords      = 3
)

// Clarification is the reply to messages too short to route.
const Clarification = "Welcome! I can help with booking **accessible flights and hotels**.\n" +
	"Please tell me:\n" +
	"- Your travel dates\n" +
	"- Destination\n" +
	"- Any accessibility needs (e.g., wheelchair assistance)."

// ErrNoAgent is recorded when the policy selects a capability nobody serves.
var ErrNoAgent = errors.New("no agent registered for capability")

// Reasons a routing pass finished.
const (
	ReasonFinished       = "finished"
	ReasonIterationLimit = "iteration_limit"
	ReasonSelfLoop       = "self_loop"
	ReasonClarification  = "clarification"
	ReasonCancelled      = "cancelled"
	ReasonPolicyError    = "policy_error"
)

type routingState string

const (
	stateIdle        routingState = "Idle"
	stateRouting     routingState = "Routing"
	stateDispatching routingState = "Dispatching"
	stateFinished    routingState = "Finished" // Terminal
)

type routingTrigger string

const (
	triggerRoute    routingTrigger = "Route"
	triggerDispatch routingTrigger = "Dispatch"
	triggerFinish   routingTrigger = "Finish"
)

// Outcome is the result of one routing pass.
type Outcome struct {
	Markdown string
	// Transcript is the working transcript including every capability reply.
	Transcript conversation.Transcript
	Results    []agent.Result
	Dispatches int
	Reason     string
}

// Supervisor routes one user message through the capability agents.
// It holds no per-message state and is safe for concurrent use.
type Supervisor struct {
	policy        Policy
	agents        map[agent.Capability]agent.Agent
	instructions  map[agent.Capability]string
	maxIterations int
	minWords      int
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithMaxIterations sets the routing iteration bound.
func WithMaxIterations(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithMinWords sets the word count below which messages get the clarification reply.
func WithMinWords(n int) Option {
	return func(s *Supervisor) {
		if n >= 0 {
			s.minWords = n
		}
	}
}

// WithInstructions overrides the system instructions of individual capabilities.
func WithInstructions(instructions map[agent.Capability]string) Option {
	return func(s *Supervisor) {
		for c, text := range instructions {
			if strings.TrimSpace(text) != "" {
				s.instructions[c] = text
			}
		}
	}
}

// NewSupervisor creates a new Supervisor.
func NewSupervisor(policy Policy, agents map[agent.Capability]agent.Agent, opts ...Option) *Supervisor {
	s := &Supervisor{
		policy:        policy,
		agents:        agents,
		instructions:  agent.DefaultInstructions(),
		maxIterations: DefaultMaxIterations,
		minWords:      DefaultMinWords,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// routingRun is the FSM context of one pass.
type routingRun struct {
	transcript    conversation.Transcript
	iteration     int
	next          agent.Capability
	results       []agent.Result
	clarification string
	reason        string
}

func (r *routingRun) finish(reason string) {
	if r.reason == "" {
		r.reason = reason
	}
}

// Run routes transcript, whose last user message is the one being answered,
// and assembles the reply. Only a malformed transcript or a broken state
// machine produce an error; remote failures degrade into the reply.
func (s *Supervisor) Run(ctx context.Context, transcript conversation.Transcript) (Outcome, error) {
	if err := transcript.Validate(); err != nil {
		return Outcome{}, err
	}

	run := &routingRun{transcript: transcript.Append()}
	var markdown string

	fsm := stateless.NewStateMachineWithMode(stateIdle, stateless.FiringQueued)

	fsm.Configure(stateIdle).
		Permit(triggerRoute, stateRouting)

	// State: Routing
	// Action: Check the guards, then ask the policy for the next capability.
	fsm.Configure(stateRouting).
		OnEntry(func(ctx context.Context, _ ...any) error {
			run.iteration++
			logger.L.Debug("FSM: Entering Routing", "iteration", run.iteration)

			if run.iteration > s.maxIterations {
				logger.L.Warn("routing iteration limit reached", "maxIterations", s.maxIterations)
				run.finish(ReasonIterationLimit)
				return fsm.FireCtx(ctx, triggerFinish)
			}
			if ctx.Err() != nil {
				run.finish(ReasonCancelled)
				return fsm.FireCtx(ctx, triggerFinish)
			}
			if s.tooShort(run.transcript) {
				run.clarification = Clarification
				run.finish(ReasonClarification)
				return fsm.FireCtx(ctx, triggerFinish)
			}

			next, err := s.policy.Select(ctx, conversation.Normalize(run.transcript))
			if err != nil {
				logger.L.Warn("capability selection failed", "error", err)
				if len(run.results) > 0 {
					run.finish(ReasonPolicyError)
					return fsm.FireCtx(ctx, triggerFinish)
				}
				next = Finish
			}
			if next == Finish {
				if len(run.results) > 0 {
					run.finish(ReasonFinished)
					return fsm.FireCtx(ctx, triggerFinish)
				}
				// Nothing answered yet; general chat is the no-specialist path.
				next = agent.General
			}
			if next == run.next {
				logger.L.Info("repeated routing decision", "capability", next)
				run.finish(ReasonSelfLoop)
				return fsm.FireCtx(ctx, triggerFinish)
			}
			run.next = next
			return fsm.FireCtx(ctx, triggerDispatch)
		}).
		Permit(triggerDispatch, stateDispatching).
		Permit(triggerFinish, stateFinished)

	// State: Dispatching
	// Action: Invoke the selected agent and append its reply.
	fsm.Configure(stateDispatching).
		OnEntry(func(ctx context.Context, _ ...any) error {
			res := s.dispatch(ctx, run.next, run.transcript)
			run.results = append(run.results, res)
			if reply := strings.TrimSpace(res.Reply); reply != "" {
				run.transcript = run.transcript.Append(conversation.Assistant(string(run.next), reply))
			}
			return fsm.FireCtx(ctx, triggerRoute)
		}).
		Permit(triggerRoute, stateRouting)

	// State: Finished
	// Action: Assemble the reply.
	fsm.Configure(stateFinished).
		OnEntry(func(ctx context.Context, _ ...any) error {
			markdown = report.Assemble(report.Input{
				Results:       run.results,
				Clarification: run.clarification,
			})
			return nil
		})

	if err := fsm.FireCtx(ctx, triggerRoute); err != nil {
		return Outcome{}, fmt.Errorf("routing: %w", err)
	}
	if state := fsm.MustState(); state != stateFinished {
		return Outcome{}, fmt.Errorf("routing ended in unexpected state: %v", state)
	}

	logger.L.Info("routing finished", "reason", run.reason, "dispatches", len(run.results), "iterations", run.iteration)
	return Outcome{
		Markdown:   markdown,
		Transcript: run.transcript,
		Results:    run.results,
		Dispatches: len(run.results),
		Reason:     run.reason,
	}, nil
}

func (s *Supervisor) tooShort(t conversation.Transcript) bool {
	msg, ok := t.LastUser()
	if !ok {
		return true
	}
	return len(strings.Fields(msg.Content)) < s.minWords
}

// dispatch invokes the agent for c. Failures become a degraded result.
func (s *Supervisor) dispatch(ctx context.Context, c agent.Capability, t conversation.Transcript) agent.Result {
	a, ok := s.agents[c]
	if !ok {
		logger.L.Error("no agent registered", "capability", c)
		return agent.Degraded(c, ErrNoAgent)
	}

	logger.L.Info("dispatching", "capability", c)
	res, err := a.Invoke(ctx, agent.Request{
		Capability:   c,
		Transcript:   conversation.Normalize(t),
		Instructions: s.instructions[c],
	})
	if err != nil {
		logger.L.Warn("capability agent failed", "capability", c, "error", err)
		return agent.Degraded(c, err)
	}
	res.Capability = c
	return res
}
