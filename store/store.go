package store

import "github.com/agusx1211/crewdeck/model"

type ConversationStore interface {
	Create(c *model.Conversation) error
	Get(id string) (*model.Conversation, error)
	List(limit, offset int) ([]*model.Conversation, error)
	Delete(id string) error
}

type MessageStore interface {
	Append(conversationID string, msg *model.Message) error
	ListByConversation(conversationID string, limit, offset int) ([]*model.Message, error)
	DeleteByConversation(conversationID string) error
	CountByConversation(conversationID string) (int, error)
}
