package httpapi

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, session)
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.accounts.Login(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) UserInfo(w http.ResponseWriter, r *http.Request) {
	profile, err := s.accounts.UserInfo(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req auth.UpdateProfileRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := s.accounts.UpdateProfile(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

// AddProfileImage reads the "profile-image" part of a multipart body.
func (s *Server) AddProfileImage(w http.ResponseWriter, r *http.Request) {
	part, err := s.filePart(w, r, "profile-image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := s.accounts.AddProfileImage(r.Context(), auth.UserID(r.Context()), part.FileName(), part)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) RemoveProfileImage(w http.ResponseWriter, r *http.Request) {
	profile, err := s.accounts.RemoveProfileImage(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

type sendMessageRequest struct {
	Recipient string             `json:"recipient"`
	Type      domain.ContentType `json:"messageType"`
	Content   string             `json:"content"`
	FileURL   string             `json:"fileUrl"`
}

func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	message, err := s.chat.SendMessage(r.Context(), domain.SendMessageCommand{
		SenderID:    auth.UserID(r.Context()),
		RecipientID: req.Recipient,
		Content:     domain.Content{Type: lo.CoalesceOrEmpty(req.Type, domain.ContentText), Text: req.Content, FileURL: req.FileURL},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, message)
}

type acknowledgeReadRequest struct {
	MessageIDs []uuid.UUID `json:"messageIds"`
}

type acknowledgeReadResponse struct {
	Updated []event.StatusChanged `json:"updated"`
}

func (s *Server) AcknowledgeRead(w http.ResponseWriter, r *http.Request) {
	var req acknowledgeReadRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	transitions, err := s.chat.AcknowledgeRead(r.Context(), domain.AcknowledgeReadCommand{
		ReaderID:   auth.UserID(r.Context()),
		MessageIDs: req.MessageIDs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, acknowledgeReadResponse{
		Updated: lo.Map(transitions, func(t domain.Transition, _ int) event.StatusChanged { return event.FromTransition(t) }),
	})
}

// GetMessages serves /api/messages/{peer}?page=1&limit=30.
func (s *Server) GetMessages(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.chat.FetchPage(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["peer"], page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type contactsResponse[T any] struct {
	Contacts []T `json:"contacts"`
}

func (s *Server) ConversationList(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.chat.ConversationList(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contactsResponse[domain.ConversationSummary]{Contacts: summaries})
}

type searchContactsRequest struct {
	SearchTerm string `json:"searchTerm"`
}

func (s *Server) SearchContacts(w http.ResponseWriter, r *http.Request) {
	var req searchContactsRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	profiles, err := s.chat.SearchContacts(r.Context(), auth.UserID(r.Context()), req.SearchTerm)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contactsResponse[domain.Profile]{Contacts: profiles})
}

// UploadFile streams the "file" part of a multipart body to the attachment store.
func (s *Server) UploadFile(w http.ResponseWriter, r *http.Request) {
	part, err := s.filePart(w, r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	attachment, err := s.attachments.Save(part.FileName(), part)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, attachment)
}

// filePart positions the multipart body on the named part, which is read as it streams.
func (s *Server) filePart(w http.ResponseWriter, r *http.Request, name string) (*multipart.Part, error) {
	// Room for the multipart envelope around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize+1<<20)
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing %s part", errors.ErrValidation, name)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrValidation, err)
		}
		if part.FormName() == name {
			return part, nil
		}
	}
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errors.ErrValidation, name)
	}
	return value, nil
}
