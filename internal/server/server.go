// Package server exposes the chat API used by the web client.
package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"

	"github.com/naviable/naviable-go/internal/chat"
	"github.com/naviable/naviable-go/internal/config"
	"github.com/naviable/naviable-go/internal/conversation"
	"github.com/naviable/naviable-go/internal/logger"
	"github.com/naviable/naviable-go/internal/store"
)

const (
	userCookie = "naviable_user"
	chatCookie = "naviable_chat"
	cookieAge  = 30 * 24 * time.Hour
)

// ChatStore is the chat management storage used by the handlers.
type ChatStore interface {
	CreateUser(ctx context.Context) (store.User, error)
	EnsureUser(ctx context.Context, id string) (store.User, error)
	CreateChat(ctx context.Context, userID string) (store.Chat, error)
	GetChat(ctx context.Context, id string) (store.Chat, error)
	ListChats(ctx context.Context, userID string) ([]store.Chat, error)
	DeleteChat(ctx context.Context, id string) error
	ClearMessages(ctx context.Context, chatID string) error
	Read(ctx context.Context, chatID string) (conversation.Transcript, error)
}

// Sender answers a message within a chat.
type Sender interface {
	Send(ctx context.Context, chatID, text string) (chat.Reply, error)
}

// Server is the HTTP API.
type Server struct {
	cfg        config.ServerConfig
	store      ChatStore
	chats      Sender
	router     *mux.Router
	httpServer *http.Server
}

// New creates a new Server with its routes registered.
func New(cfg config.ServerConfig, st ChatStore, chats Sender) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		chats:  chats,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware)

	s.router.HandleFunc("/", s.status).Methods(http.MethodGet)
	s.router.HandleFunc("/chat", s.postMessage).Methods(http.MethodPost)
	s.router.HandleFunc("/clear", s.clearChat).Methods(http.MethodPost)
	s.router.HandleFunc("/history", s.history).Methods(http.MethodGet)

	chats := s.router.PathPrefix("/chats").Subrouter()
	chats.HandleFunc("", s.listChats).Methods(http.MethodGet)
	chats.HandleFunc("", s.createChat).Methods(http.MethodPost)
	chats.HandleFunc("/{id}", s.getChat).Methods(http.MethodGet)
	chats.HandleFunc("/{id}", s.deleteChat).Methods(http.MethodDelete)

	// Preflight requests for every path.
	s.router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(s.handleOptions)
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("starting server", "address", s.cfg.Addr())
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// corsMiddleware adds CORS headers. Cookies identify the user, so credentials
// are allowed and the request origin is echoed when permitted.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin")
			w.Header().Add("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
