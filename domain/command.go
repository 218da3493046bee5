package domain

import "github.com/google/uuid"

// SendMessageCommand is issued by a connected user to post a direct message.
type SendMessageCommand struct {
	SenderID    string  `validate:"required"`
	RecipientID string  `validate:"required,nefield=SenderID"`
	Content     Content
}

// AcknowledgeReadCommand is issued by a reader once messages have been displayed.
type AcknowledgeReadCommand struct {
	ReaderID   string      `validate:"required"`
	MessageIDs []uuid.UUID `validate:"required,min=1"`
}

// Transition records one committed status change, so the sender can be told about it.
type Transition struct {
	MessageID   uuid.UUID
	SenderID    string
	RecipientID string
	Status      Status
}
