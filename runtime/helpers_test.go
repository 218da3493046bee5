package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/repositories"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db         *badger.DB
	messages   *repositories.MessageRepository
	users      *repositories.UserRepository
	registry   *Registry
	publisher  *recordingPublisher
	monitoring *observability.MonitoringManager
	delivery   *DeliveryMachine
}

func newFixture(t *testing.T) *fixture {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	messages, err := repositories.NewMessageRepository(db, slog.Default())
	req.NoError(err)
	t.Cleanup(func() {
		_ = messages.Close()
		_ = db.Close()
	})

	registry := NewRegistry()
	publisher := &recordingPublisher{}
	monitoring := observability.NewMonitoringManager(registry.OnlineCount)
	return &fixture{
		db:         db,
		messages:   messages,
		users:      repositories.NewUserRepository(db),
		registry:   registry,
		publisher:  publisher,
		monitoring: monitoring,
		delivery:   NewDeliveryMachine(slog.Default(), messages, registry, publisher, monitoring, 1),
	}
}

// send stores text messages one second apart, starting at base.
func (f *fixture) send(t *testing.T, base time.Time, from, to string, texts ...string) []domain.Message {
	var sent []domain.Message
	for i, text := range texts {
		m, err := f.delivery.OnMessageCreated(context.Background(), domain.Message{
			SenderID:    from,
			RecipientID: to,
			Content:     domain.Content{Type: domain.ContentText, Text: text},
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		sent = append(sent, m)
	}
	return sent
}

func (f *fixture) createUser(t *testing.T, id, username string) {
	_, err := f.users.CreateUser(context.Background(), repositories.User{
		ID:       id,
		Email:    id + "@chat.test",
		Username: username,
	})
	require.NoError(t, err)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(evt event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) Events() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.Event(nil), p.events...)
}
