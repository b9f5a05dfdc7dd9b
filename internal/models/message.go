package models

import (
	"time"
)

// Message is an immutable record of one inbound or outbound message
type Message struct {
	ID             int64     `json:"id,omitempty" bson:"-"`
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	Platform       string    `json:"platform" bson:"platform"`
	MessageID      *string   `json:"message_id" bson:"message_id,omitempty"`
	SenderType     string    `json:"sender_type" bson:"sender_type"`
	SenderPSID     *string   `json:"sender_psid" bson:"sender_psid,omitempty"`
	MessageText    string    `json:"message_text" bson:"message_text"`
	MessageType    string    `json:"message_type" bson:"message_type"`
	ImageURL       *string   `json:"image_url" bson:"image_url,omitempty"`
	AttachmentType *string   `json:"attachment_type" bson:"attachment_type,omitempty"`
	Replied        bool      `json:"replied" bson:"replied"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	Status         string    `json:"status" bson:"status"`
}

// StringPtr returns nil for an empty string so optional columns are stored as NULL
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences an optional string
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
