package service

import (
	"messengerhub/internal/constants"
	"messengerhub/pkg/messenger"
)

// Classification is the derived type and content of an inbound message
type Classification struct {
	MessageType    string
	Text           string
	ImageURL       string
	AttachmentType string
}

var attachmentPlaceholders = map[string]string{
	constants.MessageTypeImage: "[Image]",
	constants.MessageTypeVideo: "[Video]",
	constants.MessageTypeAudio: "[Audio]",
	constants.MessageTypeFile:  "[File]",
}

// ClassifyMessage derives the message type from the first attachment, if any.
// Attachment types outside image/video/audio/file classify as file.
func ClassifyMessage(msg *messenger.Message) Classification {
	if msg == nil {
		return Classification{MessageType: constants.MessageTypeText}
	}
	if len(msg.Attachments) == 0 {
		return Classification{MessageType: constants.MessageTypeText, Text: msg.Text}
	}

	first := msg.Attachments[0]
	messageType := first.Type
	if _, known := attachmentPlaceholders[messageType]; !known {
		messageType = constants.MessageTypeFile
	}

	text := msg.Text
	if text == "" {
		text = attachmentPlaceholders[messageType]
	}

	return Classification{
		MessageType:    messageType,
		Text:           text,
		ImageURL:       first.Payload.URL,
		AttachmentType: first.Type,
	}
}
