package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// Pager reads the history of a conversation one page at a time.
// Page 1 holds the newest messages; within a page messages are oldest first.
type Pager struct {
	log      *slog.Logger
	messages repositories.IMessageRepository
	retries  int
}

func NewPager(log *slog.Logger, messages repositories.IMessageRepository, retries int) *Pager {
	return &Pager{log: log, messages: messages, retries: retries}
}

func (p *Pager) Page(ctx context.Context, q domain.PageQuery) (domain.Page, error) {
	if err := validate.Struct(q); err != nil {
		return domain.Page{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	filter := repositories.MessageFilter{Between: []string{q.UserA, q.UserB}}

	var total int
	err := withRetry(ctx, p.log, "count conversation", p.retries, func() error {
		var err error
		total, err = p.messages.Count(ctx, filter)
		return err
	})
	if err != nil {
		return domain.Page{}, err
	}

	var found []repositories.DiskMessage
	err = withRetry(ctx, p.log, "find conversation page", p.retries, func() error {
		var err error
		found, err = p.messages.Find(ctx, filter, repositories.FindOptions{Skip: q.Skip(), Limit: q.Size})
		return err
	})
	if err != nil {
		return domain.Page{}, err
	}

	// Newest first from the store, back to chronological for rendering
	return domain.NewPage(q, lo.Reverse(fromDiskMessages(found)), total), nil
}
