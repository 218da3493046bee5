// Package domain contains core concepts of the chat system.
// This file defines direct messages and their content.
// Messages are immutable once stored, except for their delivery Status.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentText ContentType = "text"
	ContentFile ContentType = "file"
)

// Content is either a text body or a reference to an uploaded attachment.
type Content struct {
	Type    ContentType `json:"messageType" validate:"required,oneof=text file"`
	Text    string      `json:"content,omitempty" validate:"required_if=Type text"`
	FileURL string      `json:"fileUrl,omitempty" validate:"required_if=Type file"`
}

// Preview is what a conversation list shows for the message.
func (c Content) Preview() string {
	if c.Type == ContentFile {
		return c.FileURL
	}
	return c.Text
}

// Message represents a direct message between two users.
type Message struct {
	ID          uuid.UUID `json:"id"`
	SenderID    string    `json:"sender"`
	RecipientID string    `json:"recipient"`
	Content     Content   `json:"content"`
	CreatedAt   time.Time `json:"timestamp"`
	Status      Status    `json:"status"`
	// Seq is the store insertion order, it breaks ties between equal timestamps.
	Seq uint64 `json:"-"`
}

// Involves reports whether user is the sender or the recipient.
func (m Message) Involves(user string) bool {
	return m.SenderID == user || m.RecipientID == user
}

// PeerOf returns the other party of the message as seen by user.
func (m Message) PeerOf(user string) string {
	if m.SenderID == user {
		return m.RecipientID
	}
	return m.SenderID
}

// NewerThan orders messages by timestamp, then by insertion order.
func (m Message) NewerThan(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.After(other.CreatedAt)
	}
	return m.Seq > other.Seq
}
