package conversation

const (
	assistantPlaceholder = "I'm processing your request..."
	userPlaceholder      = "..."
)

// Normalize returns a transcript in which user and assistant turns strictly
// alternate. When two consecutive non-system messages share a role, a
// placeholder of the opposite role is inserted between them. System messages
// pass through without moving the alternation cursor. Nothing is dropped or
// reordered, and the input is not modified.
func Normalize(t Transcript) Transcript {
	if len(t) == 0 {
		return t
	}

	out := make(Transcript, 0, len(t))
	var last Role
	for _, m := range t {
		if m.Role == RoleSystem {
			out = append(out, m)
			continue
		}
		if m.Role == last {
			switch m.Role {
			case RoleUser:
				out = append(out, Message{Role: RoleAssistant, Content: assistantPlaceholder, Placeholder: true})
			case RoleAssistant:
				out = append(out, Message{Role: RoleUser, Content: userPlaceholder, Placeholder: true})
			}
		}
		out = append(out, m)
		last = m.Role
	}
	return out
}

// WithoutPlaceholders drops the turns synthesized by Normalize.
func WithoutPlaceholders(t Transcript) Transcript {
	out := make(Transcript, 0, len(t))
	for _, m := range t {
		if !m.Placeholder {
			out = append(out, m)
		}
	}
	return out
}
