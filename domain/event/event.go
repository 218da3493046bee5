// Package event defines what is pushed to connected users.
package event

import (
	"chat-relay/domain"

	"github.com/google/uuid"
)

const (
	NameReceiveMessage = "receiveMessage"
	NameMessageStatus  = "messageStatus"
)

// Event is a notification addressed to every live handle of one user.
type Event interface {
	Name() string
	Audience() string
	Payload() any
}

// MessageReceived carries a freshly stored message to one of its parties.
type MessageReceived struct {
	To      string
	Message domain.Message
}

func (e MessageReceived) Name() string     { return NameReceiveMessage }
func (e MessageReceived) Audience() string { return e.To }
func (e MessageReceived) Payload() any     { return e.Message }

// StatusChanged tells a sender that one of its messages moved forward.
type StatusChanged struct {
	MessageID uuid.UUID     `json:"messageId"`
	Status    domain.Status `json:"status"`
	SenderID  string        `json:"-"`
}

func (e StatusChanged) Name() string     { return NameMessageStatus }
func (e StatusChanged) Audience() string { return e.SenderID }
func (e StatusChanged) Payload() any     { return e }

func FromTransition(t domain.Transition) StatusChanged {
	return StatusChanged{MessageID: t.MessageID, Status: t.Status, SenderID: t.SenderID}
}
