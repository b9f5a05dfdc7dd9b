package service

import (
	"context"

	"messengerhub/internal/errors"
	"messengerhub/internal/models"
	"messengerhub/internal/validation"
)

// ConversationReader serves the read-only conversation endpoints
type ConversationReader struct {
	conversations ConversationStore
	messages      MessageStore
}

func NewConversationReader(conversations ConversationStore, messages MessageStore) *ConversationReader {
	return &ConversationReader{conversations: conversations, messages: messages}
}

// Messages returns the messages of a conversation, oldest first. An unknown
// conversation yields an empty list.
func (r *ConversationReader) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if err := validation.ValidateConversationID(conversationID); err != nil {
		return nil, err
	}
	messages, err := r.messages.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return nil, errors.NewDatabaseError("get conversation messages", err)
	}
	return messages, nil
}

// Active returns active conversations, most recent first
func (r *ConversationReader) Active(ctx context.Context) ([]models.Conversation, error) {
	conversations, err := r.conversations.ListActiveConversations(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("list active conversations", err)
	}
	return conversations, nil
}
