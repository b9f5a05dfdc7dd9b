package messenger

import (
	"fmt"
)

// WebhookPayload is the body the platform POSTs to the webhook
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the messaging events of one page
type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is a single inbound event. Message is nil for deliveries, reads and postbacks.
type MessagingEvent struct {
	Sender    Participant `json:"sender"`
	Recipient Participant `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Message   *Message    `json:"message,omitempty"`
}

// Participant identifies a sender or recipient by page-scoped id
type Participant struct {
	ID string `json:"id"`
}

// Message is the message part of an inbound event
type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text,omitempty"`
	IsEcho      bool         `json:"is_echo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is one attachment of an inbound message
type Attachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

// AttachmentPayload carries the attachment URL; sticker and template payloads add fields we ignore
type AttachmentPayload struct {
	URL string `json:"url,omitempty"`
}

// SendTextParams describes an outbound text reply
type SendTextParams struct {
	RecipientID   string
	Text          string
	HumanAgentTag bool
}

// SendImageParams describes an outbound image reply
type SendImageParams struct {
	RecipientID   string
	HumanAgentTag bool
	Filename      string
	ContentType   string
	Data          []byte
}

// SendResponse is the Send API success body
type SendResponse struct {
	RecipientID  string `json:"recipient_id"`
	MessageID    string `json:"message_id"`
	AttachmentID string `json:"attachment_id,omitempty"`
}

// UserProfile is the profile lookup body
type UserProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GraphError is the error object embedded in failed Graph API responses
type GraphError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	FBTraceID    string `json:"fbtrace_id,omitempty"`
}

type errorEnvelope struct {
	Error *GraphError `json:"error,omitempty"`
}

// APIError is returned when the Graph API answers with an error
type APIError struct {
	StatusCode int
	Code       int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}
