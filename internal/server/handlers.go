package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/naviable/naviable-go/internal/chat"
	"github.com/naviable/naviable-go/internal/conversation"
	"github.com/naviable/naviable-go/internal/logger"
	"github.com/naviable/naviable-go/internal/store"
)

// errForbidden is returned when a chat belongs to another user.
var errForbidden = errors.New("chat belongs to another user")

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Response string `json:"response"`
	ChatID   string `json:"chat_id"`
}

type historyMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type chatSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "Internal server error"
	switch {
	case errors.Is(err, conversation.ErrMalformedTranscript):
		status, msg = http.StatusBadRequest, "Message is required"
	case errors.Is(err, store.ErrNotFound):
		status, msg = http.StatusNotFound, "Chat not found"
	case errors.Is(err, errForbidden):
		status, msg = http.StatusForbidden, "Unauthorized"
	case errors.Is(err, chat.ErrPersistence):
		msg = "Your message could not be saved. Please try again."
	}
	if status == http.StatusInternalServerError {
		logger.L.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "NaviAble API is running!",
		"status":  "success",
		"app":     "NaviAble - Your Intelligent Navigation Assistant",
	})
}

// currentUser returns the user from the cookie, creating one when missing.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (store.User, error) {
	if id := cookieValue(r, userCookie); id != "" {
		return s.store.EnsureUser(r.Context(), id)
	}
	u, err := s.store.CreateUser(r.Context())
	if err != nil {
		return store.User{}, err
	}
	setCookie(w, userCookie, u.ID)
	return u, nil
}

// ownedChat loads a chat and checks it belongs to the cookie user.
func (s *Server) ownedChat(r *http.Request, id string) (store.Chat, error) {
	c, err := s.store.GetChat(r.Context(), id)
	if err != nil {
		return store.Chat{}, err
	}
	if c.UserID != cookieValue(r, userCookie) {
		return store.Chat{}, errForbidden
	}
	return c, nil
}

// currentChat returns the chat from the cookie, or a new one when the cookie
// is missing or stale.
func (s *Server) currentChat(w http.ResponseWriter, r *http.Request, u store.User) (store.Chat, error) {
	if id := cookieValue(r, chatCookie); id != "" {
		c, err := s.store.GetChat(r.Context(), id)
		if err == nil && c.UserID == u.ID {
			return c, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return store.Chat{}, err
		}
	}
	c, err := s.store.CreateChat(r.Context(), u.ID)
	if err != nil {
		return store.Chat{}, err
	}
	setCookie(w, chatCookie, c.ID)
	return c, nil
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Message is required"})
		return
	}

	u, err := s.currentUser(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.currentChat(w, r, u)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.L.Info("chat request", "chat", c.ID, "user", u.ID)
	reply, err := s.chats.Send(r.Context(), c.ID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Response: reply.Markdown, ChatID: c.ID})
}

func (s *Server) clearChat(w http.ResponseWriter, r *http.Request) {
	if id := cookieValue(r, chatCookie); id != "" {
		if _, err := s.ownedChat(r, id); err == nil {
			if err := s.store.ClearMessages(r.Context(), id); err != nil {
				writeError(w, err)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	id := cookieValue(r, chatCookie)
	if id == "" {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []historyMessage{}})
		return
	}
	if _, err := s.ownedChat(r, id); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []historyMessage{}})
		return
	}
	msgs, err := s.messages(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) messages(r *http.Request, chatID string) ([]historyMessage, error) {
	t, err := s.store.Read(r.Context(), chatID)
	if err != nil {
		return nil, err
	}
	return lo.Map(t, func(m conversation.Message, _ int) historyMessage {
		return historyMessage{Role: string(m.Role), Content: m.Content, Timestamp: m.CreatedAt.Format("15:04")}
	}), nil
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	userID := cookieValue(r, userCookie)
	if userID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"chats": []chatSummary{}})
		return
	}
	chats, err := s.store.ListChats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": lo.Map(chats, func(c store.Chat, _ int) chatSummary {
		return chatSummary{
			ID:           c.ID,
			Title:        c.DisplayTitle(),
			CreatedAt:    c.CreatedAt.Format(time.RFC3339),
			UpdatedAt:    c.UpdatedAt.Format(time.RFC3339),
			MessageCount: c.MessageCount,
		}
	})})
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.store.CreateChat(r.Context(), u.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	setCookie(w, chatCookie, c.ID)
	writeJSON(w, http.StatusOK, map[string]string{"chat_id": c.ID, "status": "created"})
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.ownedChat(r, id); err != nil {
		writeError(w, err)
		return
	}
	msgs, err := s.messages(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	setCookie(w, chatCookie, id)
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "chat_id": id})
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.ownedChat(r, id); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.DeleteChat(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if cookieValue(r, chatCookie) == id {
		clearCookie(w, chatCookie)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
