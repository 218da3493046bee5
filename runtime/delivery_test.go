package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/repositories"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func messageIDs(messages []domain.Message) []uuid.UUID {
	return lo.Map(messages, func(m domain.Message, _ int) uuid.UUID { return m.ID })
}

func transitionIDs(transitions []domain.Transition) []uuid.UUID {
	return lo.Map(transitions, func(t domain.Transition, _ int) uuid.UUID { return t.MessageID })
}

func statusEvents(events []event.Event) []event.Event {
	return lo.Filter(events, func(evt event.Event, _ int) bool { return evt.Name() == event.NameMessageStatus })
}

func TestDelivery_Created_Message_Is_Sent_To_Both_Parties(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	sent := f.send(t, time.Now().UTC(), "alice", "bob", "hello")

	req.NotEqual(uuid.Nil, sent[0].ID)
	req.Equal(domain.StatusSent, sent[0].Status)
	req.Equal(uint64(1), f.monitoring.GetLatest().MessagesSent)

	events := f.publisher.Events()
	req.Len(events, 2)
	req.Equal([]string{"bob", "alice"}, lo.Map(events, func(evt event.Event, _ int) string { return evt.Audience() }))
	for _, evt := range events {
		req.Equal(event.NameReceiveMessage, evt.Name())
		req.Equal(sent[0], evt.Payload())
	}
}

func TestDelivery_Offline_Recipient_Gets_Nothing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Given bob is offline with three pending messages
	f.send(t, time.Now().UTC(), "alice", "bob", "m1", "m2", "m3")

	// When delivery is evaluated
	transitions, err := f.delivery.EvaluateDeliveryForRecipient(ctx, "bob")

	// Then nothing moves
	req.NoError(err)
	req.Empty(transitions)
	pending, err := f.messages.Count(ctx, repositories.MessageFilter{Recipient: "bob", Statuses: []domain.Status{domain.StatusSent}})
	req.NoError(err)
	req.Equal(3, pending)
	req.Empty(statusEvents(f.publisher.Events()))
}

func TestDelivery_Online_Recipient_Gets_Exactly_Pending_Set(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	// Given three messages for bob and one for clara
	forBob := f.send(t, base, "alice", "bob", "m1", "m2", "m3")
	f.send(t, base, "alice", "clara", "not for bob")

	// When bob connects
	f.registry.Connect("bob", "bob-1")
	transitions, err := f.delivery.EvaluateDeliveryForRecipient(ctx, "bob")

	// Then exactly his messages are delivered, in send order
	req.NoError(err)
	req.Equal(messageIDs(forBob), transitionIDs(transitions))
	for _, tr := range transitions {
		req.Equal(domain.StatusDelivered, tr.Status)
		req.Equal("alice", tr.SenderID)
	}

	// And alice is told about each of them
	events := statusEvents(f.publisher.Events())
	req.Len(events, 3)
	for i, evt := range events {
		req.Equal(event.NameMessageStatus, evt.Name())
		req.Equal("alice", evt.Audience())
		req.Equal(forBob[i].ID, evt.(event.StatusChanged).MessageID)
	}

	// And a second evaluation has nothing left to do
	again, err := f.delivery.EvaluateDeliveryForRecipient(ctx, "bob")
	req.NoError(err)
	req.Empty(again)
	req.Equal(uint64(3), f.monitoring.GetLatest().MessagesDelivered)
}

func TestDelivery_MarkRead_By_Someone_Else_Is_Ignored(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	sent := f.send(t, time.Now().UTC(), "alice", "bob", "secret")

	// When mallory acknowledges bob's message
	transitions, err := f.delivery.MarkRead(ctx, messageIDs(sent), "mallory")

	// Then it is a no-op, not an error
	req.NoError(err)
	req.Empty(transitions)
	stored, err := f.messages.Find(ctx, repositories.MessageFilter{Recipient: "bob"}, repositories.FindOptions{})
	req.NoError(err)
	req.Equal(domain.StatusSent, stored[0].Status)
}

func TestDelivery_MarkRead_Then_Delivery_Never_Goes_Back(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	sent := f.send(t, time.Now().UTC(), "alice", "bob", "m1", "m2")

	// Given bob reads the first message straight from sent
	transitions, err := f.delivery.MarkRead(ctx, messageIDs(sent[:1]), "bob")
	req.NoError(err)
	req.Equal(messageIDs(sent[:1]), transitionIDs(transitions))

	// When he comes online
	f.registry.Connect("bob", "bob-1")
	delivered, err := f.delivery.EvaluateDeliveryForRecipient(ctx, "bob")
	req.NoError(err)

	// Then only the unread one is delivered
	req.Equal(messageIDs(sent[1:]), transitionIDs(delivered))

	// And reading twice changes nothing the second time
	_, err = f.delivery.MarkRead(ctx, messageIDs(sent), "bob")
	req.NoError(err)
	again, err := f.delivery.MarkRead(ctx, messageIDs(sent), "bob")
	req.NoError(err)
	req.Empty(again)

	stored, err := f.messages.Find(ctx, repositories.MessageFilter{Between: []string{"alice", "bob"}}, repositories.FindOptions{})
	req.NoError(err)
	for _, m := range stored {
		req.Equal(domain.StatusRead, m.Status)
	}
}

func TestDelivery_Status_Events_Follow_Commit_Order(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	sent := f.send(t, time.Now().UTC(), "alice", "bob", "m1")
	f.registry.Connect("bob", "bob-1")

	_, err := f.delivery.EvaluateDeliveryForRecipient(ctx, "bob")
	req.NoError(err)
	_, err = f.delivery.MarkRead(ctx, messageIDs(sent), "bob")
	req.NoError(err)

	statuses := lo.Map(statusEvents(f.publisher.Events()), func(evt event.Event, _ int) domain.Status {
		return evt.(event.StatusChanged).Status
	})
	req.Equal([]domain.Status{domain.StatusDelivered, domain.StatusRead}, statuses)
}

func TestDelivery_Missing_Identity_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.delivery.EvaluateDeliveryForRecipient(context.Background(), "")
	req.ErrorIs(err, errors.ErrValidation)

	_, err = f.delivery.MarkRead(context.Background(), []uuid.UUID{uuid.New()}, "")
	req.ErrorIs(err, errors.ErrValidation)
}

func TestDelivery_Store_Failure_Is_Retried_Then_Reported(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	presence := mocks.NewMockIPresenceRegistry(ctrl)
	publisher := mocks.NewMockIPublisher(ctrl)
	monitoring := observability.NewMonitoringManager(nil)

	// Given a store failing on every attempt
	repository.EXPECT().
		InsertOne(gomock.Any(), gomock.Any()).
		Return(repositories.DiskMessage{}, stderrors.New("connection reset")).
		Times(3)
	publisher.EXPECT().Publish(gomock.Any()).Times(0)

	delivery := NewDeliveryMachine(slog.Default(), repository, presence, publisher, monitoring, 2)

	// When a message is created
	_, err := delivery.OnMessageCreated(context.Background(), domain.Message{
		SenderID:    "alice",
		RecipientID: "bob",
		Content:     domain.Content{Type: domain.ContentText, Text: "hello"},
		CreatedAt:   time.Now().UTC(),
	})

	// Then the caller gets a store unavailable error
	req.ErrorIs(err, errors.ErrStoreUnavailable)
	req.Equal(uint64(1), monitoring.GetLatest().StoreFailures)
	req.Zero(monitoring.GetLatest().MessagesSent)
}
