package httpserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumenchat/lumenchat/internal/chat"
	"github.com/lumenchat/lumenchat/internal/modelmeta"
	"github.com/lumenchat/lumenchat/internal/provider/registry"
	"github.com/lumenchat/lumenchat/internal/stream"
	"github.com/lumenchat/lumenchat/internal/version"
)

// userIDHeader carries the owner identity. Authentication proper lives in
// front of this service; the streaming core only needs an owner scope.
const userIDHeader = "X-User-ID"

// Server exposes the REST and streaming endpoints of lumenchat.
type Server struct {
	store    chat.Store
	orch     *stream.Orchestrator
	registry *registry.Registry
	models   *modelmeta.Store
	filesDir string
	logger   *log.Logger
	logLevel string
}

// Config wires the server's collaborators.
type Config struct {
	Store    chat.Store
	Orch     *stream.Orchestrator
	Registry *registry.Registry
	Models   *modelmeta.Store
	// FilesDir, when set, is served under /files/ for deployments without a
	// CDN in front of the storage directory.
	FilesDir string
	Logger   *log.Logger
	LogLevel string
}

// New creates a Server.
func New(cfg Config) *Server {
	return &Server{
		store:    cfg.Store,
		orch:     cfg.Orch,
		registry: cfg.Registry,
		models:   cfg.Models,
		filesDir: cfg.FilesDir,
		logger:   cfg.Logger,
		logLevel: cfg.LogLevel,
	}
}

// Router returns a configured chi router for embedding in HTTP servers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/chats/stream", s.handleStream)
		api.Get("/chats", s.handleListChats)
		api.Get("/chats/{chatID}/messages", s.handleListMessages)
		api.Get("/providers", s.handleListProviders)
		api.Get("/models", s.handleListModels)
	})

	if s.filesDir != "" {
		fs := http.StripPrefix("/files/", http.FileServer(http.Dir(s.filesDir)))
		r.Get("/files/*", fs.ServeHTTP)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Info(),
	})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.registry.Names()})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": s.models.List()})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing "+userIDHeader+" header")
		return
	}
	chats, err := s.store.ListChats(r.Context(), userID)
	if err != nil {
		s.logf("list chats: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	out := make([]chatJSON, 0, len(chats))
	for _, c := range chats {
		out = append(out, toChatJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": out})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing "+userIDHeader+" header")
		return
	}
	chatID := chi.URLParam(r, "chatID")
	if _, err := s.store.GetChat(r.Context(), chatID, userID); err != nil {
		writeJSONError(w, http.StatusNotFound, "chat not found")
		return
	}
	messages, err := s.store.ListMessages(r.Context(), chatID)
	if err != nil {
		s.logf("list messages: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	out := make([]messageJSON, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageJSON(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

type chatJSON struct {
	ID              string  `json:"id"`
	Model           string  `json:"model"`
	MaxTokens       int     `json:"maxTokens"`
	Temperature     float64 `json:"temperature"`
	WebSearch       bool    `json:"webSearch"`
	ImageGeneration bool    `json:"imageGeneration"`
	PromptID        string  `json:"promptId,omitempty"`
	Title           string  `json:"title,omitempty"`
	CreatedAt       string  `json:"createdAt"`
}

func toChatJSON(c chat.Chat) chatJSON {
	return chatJSON{
		ID:              c.ID,
		Model:           c.Model,
		MaxTokens:       c.MaxTokens,
		Temperature:     c.Temperature,
		WebSearch:       c.WebSearch,
		ImageGeneration: c.ImageGeneration,
		PromptID:        c.PromptID,
		Title:           c.Title,
		CreatedAt:       c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

type messageJSON struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	Content      string `json:"content"`
	FileKey      string `json:"fileKey,omitempty"`
	InputTokens  int    `json:"inputTokens,omitempty"`
	OutputTokens int    `json:"outputTokens,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

func toMessageJSON(m chat.Message) messageJSON {
	return messageJSON{
		ID:           m.ID,
		Role:         m.Role,
		Content:      m.Content,
		FileKey:      m.FileKey,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		CreatedAt:    m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func (s *Server) isDebug() bool {
	return strings.EqualFold(strings.TrimSpace(s.logLevel), "debug")
}
