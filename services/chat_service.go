package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

type IChatService interface {
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	AcknowledgeRead(ctx context.Context, cmd domain.AcknowledgeReadCommand) ([]domain.Transition, error)
	FetchPage(ctx context.Context, requesterID, peerID string, page, size int) (domain.Page, error)
	ConversationList(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	SearchContacts(ctx context.Context, userID, term string) ([]domain.Profile, error)
	OnUserConnected(ctx context.Context, userID string, handle domain.Handle) error
	OnUserDisconnected(handle domain.Handle)
}

// ChatLimits bounds what clients may ask for.
type ChatLimits struct {
	MaxContentLength int
	DefaultPageSize  int
	MaxPageSize      int
	SearchLimit      int
}

type ChatService struct {
	log        *slog.Logger
	presence   contract.IPresenceRegistry
	delivery   *runtime.DeliveryMachine
	aggregator *runtime.ConversationAggregator
	pager      *runtime.Pager
	users      repositories.IUserRepository
	contacts   contract.IContactIndex
	moderator  *moderation.Moderator
	limits     ChatLimits
	now        func() time.Time
}

// NewChatService wires the delivery core behind the operations exposed to clients.
// A nil moderator disables censoring.
func NewChatService(log *slog.Logger, presence contract.IPresenceRegistry,
	delivery *runtime.DeliveryMachine, aggregator *runtime.ConversationAggregator, pager *runtime.Pager,
	users repositories.IUserRepository, contacts contract.IContactIndex,
	moderator *moderation.Moderator, limits ChatLimits) *ChatService {
	return &ChatService{
		log:        log,
		presence:   presence,
		delivery:   delivery,
		aggregator: aggregator,
		pager:      pager,
		users:      users,
		contacts:   contacts,
		moderator:  moderator,
		limits:     limits,
		now:        time.Now,
	}
}

// SendMessage stores a message for an existing recipient and, when the recipient
// is connected, delivers it right away. The returned message carries the status
// reached at return time.
func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if err := validate.Struct(cmd); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if s.limits.MaxContentLength > 0 && utf8.RuneCountInString(cmd.Content.Text) > s.limits.MaxContentLength {
		return domain.Message{}, fmt.Errorf("%w: content longer than %d characters",
			errors.ErrValidation, s.limits.MaxContentLength)
	}
	if _, err := s.users.GetProfile(ctx, cmd.RecipientID); err != nil {
		return domain.Message{}, err
	}

	content := cmd.Content
	if s.moderator != nil && content.Type == domain.ContentText {
		content.Text = s.moderator.Moderate(content.Text)
	}

	message, err := s.delivery.OnMessageCreated(ctx, domain.Message{
		SenderID:    cmd.SenderID,
		RecipientID: cmd.RecipientID,
		Content:     content,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.Message{}, err
	}

	if !s.presence.IsOnline(message.RecipientID) {
		return message, nil
	}
	// The message is stored, a failed delivery is caught up on the next evaluation
	transitions, err := s.delivery.EvaluateDeliveryForRecipient(ctx, message.RecipientID)
	if err != nil {
		s.log.Warn("Immediate delivery failed", "message", message.ID, "error", err)
		return message, nil
	}
	if lo.ContainsBy(transitions, func(t domain.Transition) bool { return t.MessageID == message.ID }) {
		message.Status = domain.StatusDelivered
	}
	return message, nil
}

func (s *ChatService) AcknowledgeRead(ctx context.Context, cmd domain.AcknowledgeReadCommand) ([]domain.Transition, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return s.delivery.MarkRead(ctx, cmd.MessageIDs, cmd.ReaderID)
}

// FetchPage returns one page of the conversation between requester and peer.
// Pending messages addressed to the requester are delivered first, so the page
// shows them with their new status. A zero size means the default page size,
// sizes above the maximum are capped.
func (s *ChatService) FetchPage(ctx context.Context, requesterID, peerID string, page, size int) (domain.Page, error) {
	if size == 0 {
		size = s.limits.DefaultPageSize
	}
	if s.limits.MaxPageSize > 0 && size > s.limits.MaxPageSize {
		size = s.limits.MaxPageSize
	}
	query := domain.PageQuery{UserA: requesterID, UserB: peerID, Page: page, Size: size}
	if err := validate.Struct(query); err != nil {
		return domain.Page{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if !query.InRange() {
		return domain.Page{}, fmt.Errorf("%w: page %d is out of range", errors.ErrValidation, page)
	}

	if _, err := s.delivery.EvaluateDeliveryForRecipient(ctx, requesterID); err != nil {
		s.log.Warn("Delivery evaluation before fetch failed", "user", requesterID, "error", err)
	}
	return s.pager.Page(ctx, query)
}

func (s *ChatService) ConversationList(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	return s.aggregator.Summaries(ctx, userID)
}

// SearchContacts finds other users by name, username or email, ordered by id.
func (s *ChatService) SearchContacts(ctx context.Context, userID, term string) ([]domain.Profile, error) {
	ids, err := s.contacts.Search(ctx, term, userID, s.limits.SearchLimit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Profile{}, nil
	}
	profiles, err := s.users.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(ids, func(id string, _ int) (domain.Profile, bool) {
		profile, ok := profiles[id]
		return profile, ok
	}), nil
}

// OnUserConnected registers the connection then delivers whatever waited for the user.
func (s *ChatService) OnUserConnected(ctx context.Context, userID string, handle domain.Handle) error {
	s.presence.Connect(userID, handle)
	s.log.Debug("User connected", "user", userID, "handle", handle)

	transitions, err := s.delivery.EvaluateDeliveryForRecipient(ctx, userID)
	if err != nil {
		return err
	}
	if len(transitions) > 0 {
		s.log.Info("Pending messages delivered", "user", userID, "count", len(transitions))
	}
	return nil
}

func (s *ChatService) OnUserDisconnected(handle domain.Handle) {
	userID, wentOffline := s.presence.Disconnect(handle)
	if wentOffline {
		s.log.Debug("User went offline", "user", userID)
	}
}
