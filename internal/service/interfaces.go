package service

import (
	"context"

	"messengerhub/internal/models"
)

// ConversationStore defines the conversation operations needed by the services
type ConversationStore interface {
	// UpsertConversation inserts the row or, on an existing conversation_id, refreshes
	// last_message_time and replaces the customer name only when the new one is known.
	UpsertConversation(ctx context.Context, conv *models.Conversation) error
	// FindConversationByCustomer returns the most recent conversation of a PSID, or nil
	FindConversationByCustomer(ctx context.Context, psid string) (*models.Conversation, error)
	// UpdateCustomerName sets the name on every conversation of a PSID
	UpdateCustomerName(ctx context.Context, psid, name string) (int64, error)
	ListActiveConversations(ctx context.Context) ([]models.Conversation, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
}

// MessageStore defines the message operations needed by the services
type MessageStore interface {
	// SaveMessage appends a message. It reports false when a row with the same
	// non-empty message_id already exists and nothing was written.
	SaveMessage(ctx context.Context, msg *models.Message) (bool, error)
	GetConversationMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	CountUnreplied(ctx context.Context, conversationID string) (int, error)
	// MarkConversationReplied flags every unreplied customer message of a conversation as replied
	MarkConversationReplied(ctx context.Context, conversationID string) (int64, error)
}

// UnrepliedAggregator is implemented by stores with a precomputed unreplied aggregation
type UnrepliedAggregator interface {
	AggregateUnreplied(ctx context.Context) ([]models.UnrepliedCount, error)
}

// Store is the full persistence surface implemented by every backend
type Store interface {
	ConversationStore
	MessageStore
	Close() error
}
