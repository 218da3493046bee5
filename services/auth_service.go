package services

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/storage"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (Session, error)
	UserInfo(ctx context.Context, userID string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, req auth.UpdateProfileRequest) (domain.Profile, error)
	AddProfileImage(ctx context.Context, userID, name string, content io.Reader) (domain.Profile, error)
	RemoveProfileImage(ctx context.Context, userID string) (domain.Profile, error)
}

// IImageStore keeps profile pictures next to the other uploads.
type IImageStore interface {
	Save(name string, content io.Reader) (storage.Attachment, error)
	Remove(path string) error
}

// Session is what a client receives after a successful login or registration.
type Session struct {
	Token   string         `json:"token"`
	Profile domain.Profile `json:"user"`
}

type AuthService struct {
	log            *slog.Logger
	userRepository repositories.IUserRepository
	contacts       contract.IContactIndex
	images         IImageStore
	tokens         auth.Tokens
}

func NewAuthService(log *slog.Logger, repo repositories.IUserRepository,
	contacts contract.IContactIndex, images IImageStore, tokens auth.Tokens) *AuthService {
	return &AuthService{log: log, userRepository: repo, contacts: contacts, images: images, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (Session, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	// Business rules are checked before any expensive hashing
	if err := auth.ValidateRegister(req); err != nil {
		return Session{}, err
	}

	// The repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(ctx, repositories.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Image:        req.Image,
		Color:        req.Color,
	})
	if err != nil {
		// ErrUserAlreadyExists when the email or the username is taken
		return Session{}, err
	}

	// The account exists even if it cannot be found by search yet
	s.index(user)

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Profile: user.Profile()}, nil
}

func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (Session, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := auth.ValidateLogin(req); err != nil {
		return Session{}, errors.ErrInvalidCredentials
	}

	user, err := s.userRepository.GetUserByEmail(ctx, req.Email)
	if err != nil {
		// Same answer for unknown email and wrong password
		if !errors.Is(err, errors.ErrNotFound) {
			s.log.Error("Failed to load user", "error", err)
		}
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Profile: user.Profile()}, nil
}

func (s *AuthService) UserInfo(ctx context.Context, userID string) (domain.Profile, error) {
	return s.userRepository.GetProfile(ctx, userID)
}

// UpdateProfile completes or edits the public fields of the caller's account,
// then refreshes its search entry.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req auth.UpdateProfileRequest) (domain.Profile, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := auth.ValidateUpdateProfile(req); err != nil {
		return domain.Profile{}, err
	}

	user, err := s.userRepository.UpdateProfile(ctx, userID, func(profile *domain.Profile) {
		profile.Username = req.Username
		profile.FirstName = req.FirstName
		profile.LastName = req.LastName
		profile.Color = req.Color
	})
	if err != nil {
		return domain.Profile{}, err
	}
	s.index(user)
	return user.Profile(), nil
}

// AddProfileImage stores a picture and makes it the caller's profile image.
// The picture it replaces is deleted.
func (s *AuthService) AddProfileImage(ctx context.Context, userID, name string, content io.Reader) (domain.Profile, error) {
	attachment, err := s.images.Save(name, content)
	if err != nil {
		return domain.Profile{}, err
	}
	if !mimetypes.IsImage(attachment.MimeType) {
		s.discardImage(attachment.Path)
		return domain.Profile{}, fmt.Errorf("%w: %s is not an image", errors.ErrInvalidAttachment, attachment.MimeType)
	}

	var previous string
	user, err := s.userRepository.UpdateProfile(ctx, userID, func(profile *domain.Profile) {
		previous = profile.Image
		profile.Image = attachment.Path
	})
	if err != nil {
		s.discardImage(attachment.Path)
		return domain.Profile{}, err
	}
	s.discardImage(previous)
	return user.Profile(), nil
}

func (s *AuthService) RemoveProfileImage(ctx context.Context, userID string) (domain.Profile, error) {
	var previous string
	user, err := s.userRepository.UpdateProfile(ctx, userID, func(profile *domain.Profile) {
		previous = profile.Image
		profile.Image = ""
	})
	if err != nil {
		return domain.Profile{}, err
	}
	s.discardImage(previous)
	return user.Profile(), nil
}

func (s *AuthService) index(user repositories.User) {
	if err := s.contacts.Index(user.Profile()); err != nil {
		s.log.Error("Failed to index contact", "user", user.ID, "error", err)
	}
}

// discardImage removes an uploaded picture. Images set as plain URLs at registration
// are not uploads and are left alone.
func (s *AuthService) discardImage(path string) {
	if path == "" {
		return
	}
	err := s.images.Remove(path)
	if err != nil && !errors.Is(err, errors.ErrValidation) {
		s.log.Warn("Failed to remove profile image", "path", path, "error", err)
	}
}
