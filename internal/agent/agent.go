// Package agent implements the capability agents the supervisor dispatches to:
// flight search, lodging search and general conversation.
package agent

import (
	"context"

	"github.com/naviable/naviable-go/internal/conversation"
)

// Capability names a specialized handler.
type Capability string

const (
	Flight  Capability = "Flight-Agent"
	Lodging Capability = "Lodging-Agent"
	General Capability = "General-Chat"
)

// Capabilities lists every capability in routing order.
var Capabilities = []Capability{Flight, Lodging, General}

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	switch c {
	case Flight, Lodging, General:
		return true
	}
	return false
}

// Travel reports whether c produces structured travel options.
func (c Capability) Travel() bool {
	return c == Flight || c == Lodging
}

func (c Capability) label() string {
	switch c {
	case Flight:
		return "flight search"
	case Lodging:
		return "hotel search"
	default:
		return "travel assistant"
	}
}

// FlightOption is one flight offer pulled from an agent reply.
type FlightOption struct {
	Airline       string `json:"airline"`
	Price         string `json:"price"`
	Dates         string `json:"dates"`
	Link          string `json:"link"`
	Accessibility string `json:"accessibility,omitempty"`
}

// HotelOption is one lodging offer pulled from an agent reply.
type HotelOption struct {
	Name          string `json:"name"`
	Price         string `json:"price"`
	Dates         string `json:"dates"`
	Link          string `json:"link"`
	Accessibility string `json:"accessibility,omitempty"`
}

// Request is the input of a capability invocation.
type Request struct {
	Capability   Capability
	Transcript   conversation.Transcript
	Instructions string
}

// Result is the output of a capability invocation.
type Result struct {
	Capability Capability
	Reply      string
	Weather    string
	Flights    []FlightOption
	Hotels     []HotelOption
	FollowUp   string
	// Degraded is set when the reply is a placeholder for a failed call.
	Degraded bool
}

// Agent handles a transcript for one capability. Implementations may issue
// remote calls, so Invoke can block and fail.
type Agent interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}

// Func adapts a function to the Agent interface.
type Func func(ctx context.Context, req Request) (Result, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// DefaultInstructions are the system prompts prepended for each capability.
func DefaultInstructions() map[Capability]string {
	return map[Capability]string{
		Flight: "You are a flight booking assistant for travelers with accessibility needs. " +
			"Use the search tools to find flights. For every option give the airline, price, dates, " +
			"a booking link and the accessibility services offered (wheelchair assistance, pre-boarding, " +
			"medical equipment policy). Prefer non-stop flights. If departure city, destination or dates " +
			"are missing, ask for them in plain conversational markdown. Use bullet lists, never tables, " +
			"and never include JSON or code blocks.",
		Lodging: "You are a hotel search assistant for travelers with disabilities. " +
			"Use the search tools to find 2-3 accessible hotels. For every option give the name, nightly " +
			"price, dates, a booking link and its accessibility features (roll-in shower, grab bars, " +
			"elevators, visual alarms). If the city or dates are missing, ask for them in plain " +
			"conversational markdown. Use bullet lists, never tables, and never include JSON or code blocks.",
		General: "You are NaviAble, a friendly travel assistant focused on accessible travel. " +
			"Answer concisely in markdown without tables, JSON or code blocks.",
	}
}
