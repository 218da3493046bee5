package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
)

// ConversationAggregator builds the contact list of a user: one row per peer,
// holding the latest message exchanged with that peer, most recent first.
type ConversationAggregator struct {
	log      *slog.Logger
	messages repositories.IMessageRepository
	profiles repositories.IUserRepository
	retries  int
}

func NewConversationAggregator(log *slog.Logger, messages repositories.IMessageRepository,
	profiles repositories.IUserRepository, retries int) *ConversationAggregator {
	return &ConversationAggregator{log: log, messages: messages, profiles: profiles, retries: retries}
}

// Summaries returns an empty slice, not an error, when the user never exchanged a message.
func (a *ConversationAggregator) Summaries(ctx context.Context, forUser string) ([]domain.ConversationSummary, error) {
	if forUser == "" {
		return nil, fmt.Errorf("%w: user is required", errors.ErrValidation)
	}

	var found []repositories.DiskMessage
	err := withRetry(ctx, a.log, "find conversations", a.retries, func() error {
		var err error
		found, err = a.messages.Find(ctx, repositories.MessageFilter{Involving: forUser}, repositories.FindOptions{})
		return err
	})
	if err != nil {
		return nil, err
	}
	messages := fromDiskMessages(found)

	peers := domain.Peers(forUser, messages)
	if len(peers) == 0 {
		return []domain.ConversationSummary{}, nil
	}

	var profiles map[string]domain.Profile
	err = withRetry(ctx, a.log, "get profiles", a.retries, func() error {
		var err error
		profiles, err = a.profiles.GetProfiles(ctx, peers)
		return err
	})
	if err != nil {
		return nil, err
	}
	if missing := len(peers) - len(profiles); missing > 0 {
		a.log.Debug("Peers without profile left out of the contact list", "user", forUser, "count", missing)
	}

	return domain.Summarize(forUser, messages, profiles), nil
}
