package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DeliveryMachine owns every status change of a message: sent on creation, delivered once
// the recipient is reachable, read once the recipient acknowledges it.
//
// All transitions for one recipient run under that recipient's lock, and the resulting
// notifications are published before the lock is released, so observers see status
// changes of a message in the order they were committed.
type DeliveryMachine struct {
	log        *slog.Logger
	repository repositories.IMessageRepository
	presence   contract.IPresenceRegistry
	publisher  contract.IPublisher
	monitoring *observability.MonitoringManager
	locks      *KeyLock
	retries    int
}

func NewDeliveryMachine(log *slog.Logger, repository repositories.IMessageRepository,
	presence contract.IPresenceRegistry, publisher contract.IPublisher,
	monitoring *observability.MonitoringManager, retries int) *DeliveryMachine {
	return &DeliveryMachine{
		log:        log,
		repository: repository,
		presence:   presence,
		publisher:  publisher,
		monitoring: monitoring,
		locks:      NewKeyLock(),
		retries:    retries,
	}
}

// OnMessageCreated stores the message with status sent and returns it with its identity.
// Both parties are then notified of the new message, before any status change of it
// can be published.
func (d *DeliveryMachine) OnMessageCreated(ctx context.Context, message domain.Message) (domain.Message, error) {
	unlock := d.locks.Lock(message.RecipientID)
	defer unlock()

	message.Status = domain.StatusSent
	var stored repositories.DiskMessage
	err := withRetry(ctx, d.log, "insert message", d.retries, func() error {
		var err error
		stored, err = d.repository.InsertOne(ctx, toDiskMessage(message))
		return err
	})
	if err != nil {
		d.storeFailed(err)
		return domain.Message{}, err
	}
	d.monitoring.IncrSent()

	created := fromDiskMessage(stored)
	d.publisher.Publish(event.MessageReceived{To: created.RecipientID, Message: created})
	d.publisher.Publish(event.MessageReceived{To: created.SenderID, Message: created})
	return created, nil
}

// EvaluateDeliveryForRecipient moves every sent message addressed to the recipient to
// delivered, provided the recipient is online right now. The batch is one store
// transaction. An offline recipient, or nothing pending, yields no transition.
func (d *DeliveryMachine) EvaluateDeliveryForRecipient(ctx context.Context, recipientID string) ([]domain.Transition, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("%w: recipient is required", errors.ErrValidation)
	}
	unlock := d.locks.Lock(recipientID)
	defer unlock()

	if !d.presence.IsOnline(recipientID) {
		return nil, nil
	}

	var pending []repositories.DiskMessage
	err := withRetry(ctx, d.log, "find pending messages", d.retries, func() error {
		var err error
		pending, err = d.repository.Find(ctx, repositories.MessageFilter{
			Recipient: recipientID,
			Statuses:  []domain.Status{domain.StatusSent},
		}, repositories.FindOptions{Ascending: true})
		return err
	})
	if err != nil {
		d.storeFailed(err)
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	transitions, err := d.transition(ctx, repositories.StatusUpdate{
		IDs:       lo.Map(pending, func(m repositories.DiskMessage, _ int) uuid.UUID { return m.ID }),
		Recipient: recipientID,
		To:        domain.StatusDelivered,
	})
	if err != nil {
		return nil, err
	}
	d.monitoring.IncrDelivered(len(transitions))
	return transitions, nil
}

// MarkRead moves the given messages to read. Only messages addressed to the reader are
// touched: the others are rejected without error, a user cannot forge receipts for
// someone else's messages. Messages already read are left alone.
func (d *DeliveryMachine) MarkRead(ctx context.Context, messageIDs []uuid.UUID, readerID string) ([]domain.Transition, error) {
	if readerID == "" {
		return nil, fmt.Errorf("%w: reader is required", errors.ErrValidation)
	}
	if len(messageIDs) == 0 {
		return nil, nil
	}
	unlock := d.locks.Lock(readerID)
	defer unlock()

	transitions, err := d.transition(ctx, repositories.StatusUpdate{
		IDs:       messageIDs,
		Recipient: readerID,
		To:        domain.StatusRead,
	})
	if err != nil {
		return nil, err
	}
	d.monitoring.IncrRead(len(transitions))
	return transitions, nil
}

// transition commits the update then publishes one StatusChanged per moved message.
// Callers hold the recipient lock.
func (d *DeliveryMachine) transition(ctx context.Context, update repositories.StatusUpdate) ([]domain.Transition, error) {
	var res repositories.UpdateResult
	err := withRetry(ctx, d.log, "update status", d.retries, func() error {
		var err error
		res, err = d.repository.UpdateStatus(ctx, update)
		return err
	})
	if err != nil {
		d.storeFailed(err)
		return nil, err
	}

	if len(res.Rejected) > 0 {
		d.log.Warn("Status update rejected for messages not addressed to the user",
			"user", update.Recipient, "status", update.To, "count", len(res.Rejected))
	}
	if len(res.Unchanged) > 0 {
		d.log.Debug(errors.ErrConflict.Error(),
			"user", update.Recipient, "status", update.To, "count", len(res.Unchanged))
	}

	transitions := toTransitions(res.Updated)
	for _, t := range transitions {
		d.publisher.Publish(event.FromTransition(t))
	}
	return transitions, nil
}

func (d *DeliveryMachine) storeFailed(err error) {
	if errors.Is(err, errors.ErrStoreUnavailable) {
		d.monitoring.IncrStoreFailure()
	}
	d.log.Error("Store operation failed", "error", err)
}
