// Package httpapi exposes the chat over HTTP: accounts, history, contacts, uploads
// and the websocket endpoint.
package httpapi

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/services"
	"chat-relay/storage"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type Server struct {
	log            *slog.Logger
	chat           services.IChatService
	accounts       services.IAuthService
	attachments    *storage.DiskStore
	hub            *ws.Hub
	monitoring     *observability.MonitoringManager
	tokens         auth.Tokens
	maxUploadSize  int64
	allowedOrigins []string
}

func NewServer(log *slog.Logger, chat services.IChatService, accounts services.IAuthService,
	attachments *storage.DiskStore, hub *ws.Hub, monitoring *observability.MonitoringManager,
	tokens auth.Tokens, maxUploadSize int64, allowedOrigins []string) *Server {
	return &Server{
		log:            log,
		chat:           chat,
		accounts:       accounts,
		attachments:    attachments,
		hub:            hub,
		monitoring:     monitoring,
		tokens:         tokens,
		maxUploadSize:  maxUploadSize,
		allowedOrigins: allowedOrigins,
	}
}

// Router configures the routes. Everything but registration, login, uploaded files
// and stats requires a session token.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/auth/register", s.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.Login).Methods(http.MethodPost)
	r.HandleFunc("/debug/stats", s.Stats).Methods(http.MethodGet)
	r.PathPrefix("/files/").Handler(http.FileServer(http.Dir(s.attachments.Root()))).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(auth.Middleware(s.tokens))
	protected.HandleFunc("/api/auth/user-info", s.UserInfo).Methods(http.MethodGet)
	protected.HandleFunc("/api/auth/update-profile", s.UpdateProfile).Methods(http.MethodPost)
	protected.HandleFunc("/api/auth/add-profile-image", s.AddProfileImage).Methods(http.MethodPost)
	protected.HandleFunc("/api/auth/remove-profile-image", s.RemoveProfileImage).Methods(http.MethodDelete)
	protected.HandleFunc("/api/messages", s.SendMessage).Methods(http.MethodPost)
	protected.HandleFunc("/api/messages/read", s.AcknowledgeRead).Methods(http.MethodPost)
	protected.HandleFunc("/api/messages/upload-file", s.UploadFile).Methods(http.MethodPost)
	protected.HandleFunc("/api/messages/{peer}", s.GetMessages).Methods(http.MethodGet)
	protected.HandleFunc("/api/contacts/dm-list", s.ConversationList).Methods(http.MethodGet)
	protected.HandleFunc("/api/contacts/search", s.SearchContacts).Methods(http.MethodPost)
	protected.HandleFunc("/ws", s.WebSocket).Methods(http.MethodGet)

	return r
}

// Handler is the router behind CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(s.Router())
}

func (s *Server) Stats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitoring.GetLatest())
}

func (s *Server) WebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, auth.UserID(r.Context()), s.chat)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Debug("Failed to write response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError hides internal failures from clients, domain errors are shown as is.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.ToHTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = http.StatusText(status)
	}
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) decode(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: malformed body: %v", errors.ErrValidation, err)
	}
	return nil
}
