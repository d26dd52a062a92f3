// Package router decides which capability handles a message and drives the
// bounded routing loop that dispatches to capability agents.
package router

import (
	"strings"

	"github.com/naviable/naviable-go/internal/agent"
	"github.com/naviable/naviable-go/internal/conversation"
)

var (
	flightKeywords  = []string{"flight", "fly", "ticket", "airline", "airport", "depart", "arrive"}
	lodgingKeywords = []string{"hotel", "lodging", "accommodation", "stay", "inn", "motel", "hostel", "bnb", "room"}
)

// Classify maps a user message to a capability by keyword. Flight keywords take
// precedence over lodging keywords; anything else is general chat.
func Classify(text string) agent.Capability {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, flightKeywords):
		return agent.Flight
	case containsAny(lower, lodgingKeywords):
		return agent.Lodging
	default:
		return agent.General
	}
}

// ClassifyTranscript classifies the most recent user message.
func ClassifyTranscript(t conversation.Transcript) agent.Capability {
	msg, ok := t.LastUser()
	if !ok {
		return agent.General
	}
	return Classify(msg.Content)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
