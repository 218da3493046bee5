package runtime

import (
	"chat-relay/domain"
	"chat-relay/repositories"

	"github.com/samber/lo"
)

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return fromDiskMessage(item)
	})
}

func fromDiskMessage(item repositories.DiskMessage) domain.Message {
	return domain.Message{
		ID:          item.ID,
		SenderID:    item.Sender,
		RecipientID: item.Recipient,
		Content:     item.Content,
		CreatedAt:   item.At,
		Status:      item.Status,
		Seq:         item.Seq,
	}
}

func toDiskMessage(message domain.Message) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:        message.ID,
		Sender:    message.SenderID,
		Recipient: message.RecipientID,
		Content:   message.Content,
		At:        message.CreatedAt,
		Status:    message.Status,
		Seq:       message.Seq,
	}
}

func toTransitions(messages []repositories.DiskMessage) []domain.Transition {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Transition {
		return domain.Transition{
			MessageID:   item.ID,
			SenderID:    item.Sender,
			RecipientID: item.Recipient,
			Status:      item.Status,
		}
	})
}
