// Package chat is the inbound boundary of the assistant: it validates a new
// user message, routes it, persists the exchange and titles new chats.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/naviable/naviable-go/internal/conversation"
	"github.com/naviable/naviable-go/internal/logger"
	"github.com/naviable/naviable-go/internal/router"
)

// ErrPersistence is returned when the exchange could not be stored. The
// message is not considered delivered.
var ErrPersistence = errors.New("conversation could not be persisted")

// ConversationStore is the storage the service depends on.
type ConversationStore interface {
	Append(ctx context.Context, chatID string, msgs ...conversation.Message) error
	Read(ctx context.Context, chatID string) (conversation.Transcript, error)
	SetTitle(ctx context.Context, chatID, title string) (bool, error)
}

// Router answers a transcript whose last user message is new.
type Router interface {
	Run(ctx context.Context, t conversation.Transcript) (router.Outcome, error)
}

// Titler names a chat after its first message.
type Titler interface {
	Title(ctx context.Context, message string) (string, error)
}

// Reply is the answer to one user message.
type Reply struct {
	Markdown   string
	Transcript conversation.Transcript
}

// Service handles user messages.
type Service struct {
	store  ConversationStore
	router Router
	titler Titler
	now    func() time.Time
}

// NewService creates a new Service. titler may be nil, in which case chats are
// titled with a truncation of their first message.
func NewService(store ConversationStore, r Router, titler Titler) *Service {
	return &Service{
		store:  store,
		router: r,
		titler: titler,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HandleMessage routes text as the next user turn of transcript. The updated
// transcript is transcript plus the user turn plus the assembled reply.
func (s *Service) HandleMessage(ctx context.Context, transcript conversation.Transcript, text string) (Reply, error) {
	user := conversation.User(strings.TrimSpace(text))
	user.CreatedAt = s.now()
	if err := user.Validate(); err != nil {
		return Reply{}, err
	}
	if err := transcript.Validate(); err != nil {
		return Reply{}, err
	}

	input := transcript.Append(user)
	out, err := s.router.Run(ctx, input)
	if err != nil {
		return Reply{}, fmt.Errorf("route message: %w", err)
	}

	answer := conversation.Assistant(replyName(out), out.Markdown)
	answer.CreatedAt = s.now()
	return Reply{Markdown: out.Markdown, Transcript: input.Append(answer)}, nil
}

func replyName(out router.Outcome) string {
	if len(out.Results) == 0 {
		return ""
	}
	return string(out.Results[len(out.Results)-1].Capability)
}

// Send handles text within a stored chat. The user turn and the reply are
// appended together; on failure neither is stored.
func (s *Service) Send(ctx context.Context, chatID, text string) (Reply, error) {
	transcript, err := s.store.Read(ctx, chatID)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: read chat: %w", ErrPersistence, err)
	}

	reply, err := s.HandleMessage(ctx, transcript, text)
	if err != nil {
		return Reply{}, err
	}

	if err := s.store.Append(ctx, chatID, reply.Transcript[len(transcript):]...); err != nil {
		logger.L.Error("failed to persist exchange", "chat", chatID, "error", err)
		return Reply{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if len(transcript) == 0 {
		s.nameChat(ctx, chatID, text)
	}
	return reply, nil
}

// nameChat titles a chat after its first message. Failures are logged.
func (s *Service) nameChat(ctx context.Context, chatID, message string) {
	title := FallbackTitle(message)
	if s.titler != nil {
		generated, err := s.titler.Title(ctx, message)
		switch {
		case err != nil:
			logger.L.Warn("title generation failed; using message prefix", "chat", chatID, "error", err)
		case generated != "":
			title = generated
		}
	}
	if _, err := s.store.SetTitle(ctx, chatID, title); err != nil {
		logger.L.Warn("failed to set chat title", "chat", chatID, "error", err)
	}
}
