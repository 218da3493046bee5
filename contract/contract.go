//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// IPresenceRegistry tracks which users currently hold at least one live connection.
type IPresenceRegistry interface {
	Connect(userID string, handle domain.Handle)
	Disconnect(handle domain.Handle) (userID string, wentOffline bool)
	IsOnline(userID string) bool
	HandlesFor(userID string) []domain.Handle
}

// Notifier pushes one named event to one connection. Fire and forget:
// an error only means this push was missed.
type Notifier interface {
	Notify(handle domain.Handle, name string, payload any) error
}

// IPublisher queues events for fan-out to the audience's handles.
type IPublisher interface {
	Publish(evt event.Event)
}

// IContactIndex finds users by name, username or email.
type IContactIndex interface {
	Index(profile domain.Profile) error
	Search(ctx context.Context, term, excludeID string, limit int) ([]string, error)
}
