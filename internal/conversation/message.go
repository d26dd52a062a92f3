// Package conversation defines the message model shared by the router, the
// agents and the store, and keeps transcripts in a shape an LLM accepts.
package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedTranscript is returned for messages with an unknown role or no content.
var ErrMalformedTranscript = errors.New("malformed transcript")

// Role identifies the speaker of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole maps a stored or client-supplied role onto a Role.
// "model" is accepted as an alias for assistant.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleAssistant, RoleSystem:
		return r, nil
	case "model":
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrMalformedTranscript, s)
	}
}

// Message is one turn in a conversation.
type Message struct {
	Role    Role
	Content string
	// Name tags assistant turns with the capability that produced them.
	Name      string
	CreatedAt time.Time
	// Placeholder marks turns synthesized by Normalize. They are never persisted.
	Placeholder bool
}

// Validate checks the message against the boundary rules.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrMalformedTranscript, m.Role)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: empty %s message", ErrMalformedTranscript, m.Role)
	}
	return nil
}

// Transcript is the ordered history of one conversation.
type Transcript []Message

// Validate checks every message, reporting the first offending position.
func (t Transcript) Validate() error {
	for i, m := range t {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// LastUser returns the most recent user message.
func (t Transcript) LastUser() (Message, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Role == RoleUser {
			return t[i], true
		}
	}
	return Message{}, false
}

// Append returns a copy of t with msgs added, leaving t untouched.
func (t Transcript) Append(msgs ...Message) Transcript {
	out := make(Transcript, 0, len(t)+len(msgs))
	out = append(out, t...)
	return append(out, msgs...)
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant message tagged with name.
func Assistant(name, content string) Message {
	return Message{Role: RoleAssistant, Name: name, Content: content}
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}
